package model

import "fmt"

// Violation é uma linha que casou com um padrão proibido e não estava suprimida.
type Violation struct {
	Module  string `json:"module"`  // nome da regra/módulo
	File    string `json:"file"`    // nome base do arquivo
	Path    string `json:"path"`    // caminho relativo à raiz do projeto, com "/"
	Line    int    `json:"line"`    // 1-based
	Text    string `json:"text"`    // linha sem espaços nas pontas
	Pattern string `json:"pattern"` // regex que casou
}

// String usa o formato do relatório em texto: "<arquivo>:<linha> - <texto>".
func (v Violation) String() string {
	return fmt.Sprintf("%s:%d - %s", v.File, v.Line, v.Text)
}
