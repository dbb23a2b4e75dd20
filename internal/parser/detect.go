package parser

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// IsText decide se o conteúdo pode ser lido como texto. UTF-8 inválido ou
// byte NUL indicam binário.
func IsText(data []byte) bool {
	if bytes.IndexByte(data, 0) >= 0 {
		return false
	}
	return utf8.Valid(data)
}

// SplitLines quebra em linhas aceitando "\n", "\r\n" e "\r". Uma quebra no
// final do arquivo não gera linha vazia extra.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}
