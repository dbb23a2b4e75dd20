package parser

import "strings"

// DefaultExtensions são os headers e fontes C/C++ verificados por padrão.
var DefaultExtensions = []string{".h", ".cpp", ".hpp", ".c"}

// HasExtension compara pelo sufixo do nome, como o endswith do script antigo:
// "foo.H" não conta como header.
func HasExtension(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
