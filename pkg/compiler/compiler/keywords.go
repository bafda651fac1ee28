package compiler

import "github.com/zurustar/scic/pkg/compiler/ast"

// keywords are reserved words of the SCI script language. They cannot
// name variables, parameters, procedures or classes.
var keywords = map[string]bool{
	"and": true, "argc": true, "break": true, "breakif": true, "case": true,
	"class": true, "cond": true, "continue": true, "contif": true, "define": true,
	"do": true, "else": true, "enum": true, "exports": true, "extern": true,
	"for": true, "global": true, "if": true, "include": true, "instance": true,
	"local": true, "method": true, "mod": true, "not": true, "of": true,
	"or": true, "procedure": true, "properties": true, "public": true,
	"repeat": true, "rest": true, "return": true, "script": true, "scriptNumber": true,
	"self": true, "send": true, "string": true, "super": true, "switch": true,
	"switchto": true, "synonyms": true, "text": true, "use": true, "while": true,
}

func isKeyword(name string) bool { return keywords[name] }

// checkName reports a keyword used as a name. what is "variable", "procedure" and so on.
func (c *Compiler) checkName(pos ast.Pos, name, what string) bool {
	if isKeyword(name) {
		c.addError(pos, "'%s' is a keyword and cannot be used as a %s name.", name, what)
		return false
	}
	return true
}
