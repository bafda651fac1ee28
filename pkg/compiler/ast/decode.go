package ast

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Decode reads a script document.
//
// Expressions are either scalars or mappings. An integer scalar is a number
// literal, any other scalar is an identifier token; a leading '#' makes a
// selector literal and a leading '@' an address-of. Mappings carry a "kind"
// key (number, string, said, token, pointer, selector, assign, binary, nary,
// unary, cast, call, send, rest, return, block, if, while, for, do, switch,
// break, continue, asm) plus the fields of that kind, and optionally line/column.
func Decode(data []byte) (*Script, error) {
	var doc scriptDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode script: %w", err)
	}
	return doc.script(), nil
}

// DecodeFile reads a script document from path.
func DecodeFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	s, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		base := path[strings.LastIndexAny(path, `/\`)+1:]
		s.Name = strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".sc")
	}
	return s, nil
}

type scriptDoc struct {
	Number     uint16      `yaml:"number"`
	Name       string      `yaml:"name"`
	Uses       []string    `yaml:"uses"`
	Defines    []defineDoc `yaml:"defines"`
	Variables  []varDoc    `yaml:"variables"`
	Strings    []varDoc    `yaml:"strings"`
	Procedures []procDoc   `yaml:"procedures"`
	Classes    []classDoc  `yaml:"classes"`
	Exports    []exportDoc `yaml:"exports"`
	Source     string      `yaml:"source"`
}

func (d *scriptDoc) script() *Script {
	s := &Script{Pos: Pos{Line: 1}, Number: d.Number, Name: d.Name, Uses: d.Uses, Source: d.Source}
	for _, def := range d.Defines {
		s.Defines = append(s.Defines, &Define{Pos: Pos{def.Line, def.Column}, Name: def.Name, Value: uint16(def.Value)})
	}
	for _, v := range d.Variables {
		s.Variables = append(s.Variables, v.decl())
	}
	for _, v := range d.Strings {
		s.Strings = append(s.Strings, v.decl())
	}
	for _, p := range d.Procedures {
		s.Procedures = append(s.Procedures, &Procedure{Function: p.function(), Public: p.Public, Class: p.Class})
	}
	for _, c := range d.Classes {
		s.Classes = append(s.Classes, c.class())
	}
	for _, e := range d.Exports {
		s.Exports = append(s.Exports, &Export{Pos: Pos{e.Line, e.Column}, Slot: e.Slot, Name: e.Name})
	}
	return s
}

type defineDoc struct {
	Name   string `yaml:"name"`
	Value  int    `yaml:"value"`
	Line   int    `yaml:"line"`
	Column int    `yaml:"column"`
}

type exportDoc struct {
	Slot   int    `yaml:"slot"`
	Name   string `yaml:"name"`
	Line   int    `yaml:"line"`
	Column int    `yaml:"column"`
}

type varDoc struct {
	Name   string     `yaml:"name"`
	Type   string     `yaml:"type"`
	Size   *int       `yaml:"size"`
	Init   []exprNode `yaml:"init"`
	Line   int        `yaml:"line"`
	Column int        `yaml:"column"`
}

// decl maps a missing size to a scalar, and size: -1 (name[]) to an array
// sized by its initializers.
func (d varDoc) decl() *VarDecl {
	v := &VarDecl{Pos: Pos{d.Line, d.Column}, Name: d.Name, Type: d.Type, Init: exprs(d.Init)}
	if d.Size != nil {
		if *d.Size < 0 {
			v.SizeUnspecified = true
		} else {
			v.Size = uint16(*d.Size)
		}
	}
	return v
}

type paramDoc struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Line   int    `yaml:"line"`
	Column int    `yaml:"column"`
}

// UnmarshalYAML accepts either a bare name or a mapping.
func (p *paramDoc) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		p.Name = value.Value
		p.Line, p.Column = value.Line, value.Column
		return nil
	}
	type plain paramDoc
	return value.Decode((*plain)(p))
}

type funcDoc struct {
	Name    string     `yaml:"name"`
	Params  []paramDoc `yaml:"params"`
	Temps   []varDoc   `yaml:"temps"`
	Returns string     `yaml:"returns"`
	Body    []exprNode `yaml:"body"`
	Line    int        `yaml:"line"`
	Column  int        `yaml:"column"`
}

func (d funcDoc) function() Function {
	f := Function{Pos: Pos{d.Line, d.Column}, Name: d.Name, ReturnType: d.Returns, Body: exprs(d.Body)}
	for _, p := range d.Params {
		f.Params = append(f.Params, &Param{Pos: Pos{p.Line, p.Column}, Name: p.Name, Type: p.Type})
	}
	for _, t := range d.Temps {
		f.Temps = append(f.Temps, t.decl())
	}
	return f
}

type procDoc struct {
	funcDoc `yaml:",inline"`
	Public  bool   `yaml:"public"`
	Class   string `yaml:"class"`
}

type propDoc struct {
	Name   string   `yaml:"name"`
	Value  exprNode `yaml:"value"`
	Line   int      `yaml:"line"`
	Column int      `yaml:"column"`
}

type classDoc struct {
	Name       string    `yaml:"name"`
	Super      string    `yaml:"super"`
	Instance   bool      `yaml:"instance"`
	Public     bool      `yaml:"public"`
	Properties []propDoc `yaml:"properties"`
	Methods    []funcDoc `yaml:"methods"`
	Line       int       `yaml:"line"`
	Column     int       `yaml:"column"`
}

func (d classDoc) class() *Class {
	c := &Class{Pos: Pos{d.Line, d.Column}, Name: d.Name, Super: d.Super, Instance: d.Instance, Public: d.Public}
	for _, p := range d.Properties {
		c.Properties = append(c.Properties, &Property{Pos: Pos{p.Line, p.Column}, Name: p.Name, Value: p.Value.Expr})
	}
	for _, m := range d.Methods {
		c.Methods = append(c.Methods, &Method{Function: m.function()})
	}
	return c
}

// exprNode decodes any expression.
type exprNode struct {
	Expr Expr
}

func exprs(nodes []exprNode) []Expr {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]Expr, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Expr)
	}
	return out
}

type sendParamDoc struct {
	Selector string     `yaml:"selector"`
	Call     bool       `yaml:"call"`
	Args     []exprNode `yaml:"args"`
	Line     int        `yaml:"line"`
	Column   int        `yaml:"column"`
}

type asmDoc struct {
	Label  string     `yaml:"label"`
	Op     string     `yaml:"op"`
	Args   []exprNode `yaml:"args"`
	Line   int        `yaml:"line"`
	Column int        `yaml:"column"`
}

type caseDoc struct {
	Default bool       `yaml:"default"`
	Value   exprNode   `yaml:"value"`
	Body    []exprNode `yaml:"body"`
	Line    int        `yaml:"line"`
	Column  int        `yaml:"column"`
}

type exprDoc struct {
	Kind     string         `yaml:"kind"`
	Line     int            `yaml:"line"`
	Column   int            `yaml:"column"`
	Op       string         `yaml:"op"`
	Name     string         `yaml:"name"`
	Text     string         `yaml:"text"`
	Type     string         `yaml:"type"`
	Target   string         `yaml:"target"`
	Param    string         `yaml:"param"`
	Levels   int            `yaml:"levels"`
	Value    exprNode       `yaml:"value"`
	Index    exprNode       `yaml:"index"`
	Left     exprNode       `yaml:"left"`
	Right    exprNode       `yaml:"right"`
	Operand  exprNode       `yaml:"operand"`
	Object   exprNode       `yaml:"object"`
	Cond     exprNode       `yaml:"cond"`
	Then     exprNode       `yaml:"then"`
	Else     exprNode       `yaml:"else"`
	Operands []exprNode     `yaml:"operands"`
	Args     []exprNode     `yaml:"args"`
	Body     []exprNode     `yaml:"body"`
	Init     []exprNode     `yaml:"init"`
	Step     []exprNode     `yaml:"step"`
	Params   []sendParamDoc `yaml:"params"`
	Cases    []caseDoc      `yaml:"cases"`
	Code     []asmDoc       `yaml:"code"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *exprNode) UnmarshalYAML(value *yaml.Node) error {
	pos := Pos{value.Line, value.Column}
	if value.Kind == yaml.ScalarNode {
		e, err := scalarExpr(value, pos)
		if err != nil {
			return err
		}
		n.Expr = e
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expression must be a scalar or a mapping", value.Line)
	}
	var d exprDoc
	if err := value.Decode(&d); err != nil {
		return err
	}
	if d.Line != 0 {
		pos = Pos{d.Line, d.Column}
	}
	e, err := d.expr(pos)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	n.Expr = e
	return nil
}

func scalarExpr(value *yaml.Node, pos Pos) (Expr, error) {
	switch value.Tag {
	case "!!null":
		return nil, nil
	case "!!int":
		return numberValue(value.Value, pos)
	}
	text := value.Value
	switch {
	case strings.HasPrefix(text, "#") && len(text) > 1:
		return &Value{Pos: pos, Kind: Selector, Text: text[1:]}, nil
	case strings.HasPrefix(text, "@") && len(text) > 1:
		return &Value{Pos: pos, Kind: Pointer, Text: text[1:]}, nil
	}
	return &Value{Pos: pos, Kind: Token, Text: text}, nil
}

func numberValue(text string, pos Pos) (*Value, error) {
	n, err := strconv.ParseInt(text, 0, 32)
	if err != nil {
		return nil, fmt.Errorf("line %d: invalid number %q", pos.Line, text)
	}
	if n < -32768 || n > 65535 {
		return nil, fmt.Errorf("line %d: number %d does not fit in 16 bits", pos.Line, n)
	}
	return &Value{Pos: pos, Kind: Number, Number: uint16(n), Negated: n < 0}, nil
}

func (d *exprDoc) expr(pos Pos) (Expr, error) {
	switch d.Kind {
	case "number":
		v, ok := d.Value.Expr.(*Value)
		if !ok || v.Kind != Number {
			return nil, fmt.Errorf("number needs an integer value")
		}
		v.Pos = pos
		return v, nil
	case "string":
		return &Value{Pos: pos, Kind: String, Text: d.Text}, nil
	case "said":
		return &Value{Pos: pos, Kind: Said, Text: d.Text}, nil
	case "selector":
		return &Value{Pos: pos, Kind: Selector, Text: d.Name}, nil
	case "token":
		return &Value{Pos: pos, Kind: Token, Text: d.Name, Indexer: d.Index.Expr}, nil
	case "pointer":
		return &Value{Pos: pos, Kind: Pointer, Text: d.Name, Indexer: d.Index.Expr}, nil
	case "assign":
		op := AssignOp(d.Op)
		if op == "" {
			op = Assign
		}
		return &Assignment{Pos: pos, Op: op, Name: d.Name, Indexer: d.Index.Expr, Value: d.Value.Expr}, nil
	case "binary":
		return &Binary{Pos: pos, Op: d.Op, Left: d.Left.Expr, Right: d.Right.Expr}, nil
	case "nary":
		return &Nary{Pos: pos, Op: d.Op, Operands: exprs(d.Operands)}, nil
	case "unary":
		return &Unary{Pos: pos, Op: d.Op, Operand: d.Operand.Expr}, nil
	case "cast":
		return &Cast{Pos: pos, Type: d.Type, Value: d.Value.Expr}, nil
	case "call":
		return &Call{Pos: pos, Name: d.Name, Args: exprs(d.Args)}, nil
	case "send":
		s := &Send{Pos: pos, Target: d.Target, TargetIndexer: d.Index.Expr, TargetExpr: d.Object.Expr}
		if (s.Target == "") == (s.TargetExpr == nil) {
			return nil, fmt.Errorf("send needs exactly one of target and object")
		}
		for _, p := range d.Params {
			s.Params = append(s.Params, &SendParam{Pos: Pos{p.Line, p.Column}, Selector: p.Selector, Call: p.Call, Args: exprs(p.Args)})
		}
		return s, nil
	case "rest":
		return &Rest{Pos: pos, Param: d.Param}, nil
	case "return":
		return &Return{Pos: pos, Value: d.Value.Expr}, nil
	case "block":
		return &Block{Pos: pos, Body: exprs(d.Body)}, nil
	case "if":
		return &If{Pos: pos, Cond: d.Cond.Expr, Then: d.Then.Expr, Else: d.Else.Expr}, nil
	case "while":
		return &While{Pos: pos, Cond: d.Cond.Expr, Body: exprs(d.Body)}, nil
	case "for":
		return &For{Pos: pos, Init: exprs(d.Init), Cond: d.Cond.Expr, Step: exprs(d.Step), Body: exprs(d.Body)}, nil
	case "do":
		return &Do{Pos: pos, Body: exprs(d.Body), Cond: d.Cond.Expr}, nil
	case "switch":
		s := &Switch{Pos: pos, Value: d.Value.Expr}
		for _, c := range d.Cases {
			s.Cases = append(s.Cases, &Case{Pos: Pos{c.Line, c.Column}, Default: c.Default, Value: c.Value.Expr, Body: exprs(c.Body)})
		}
		return s, nil
	case "break":
		return &Break{Pos: pos, Levels: d.Levels}, nil
	case "continue":
		return &Continue{Pos: pos, Levels: d.Levels}, nil
	case "asm":
		a := &Asm{Pos: pos}
		for _, in := range d.Code {
			if in.Op == "" {
				return nil, fmt.Errorf("line %d: asm instruction without op", in.Line)
			}
			ipos := Pos{in.Line, in.Column}
			if ipos.Line == 0 {
				ipos = pos
			}
			a.Body = append(a.Body, &AsmInstruction{Pos: ipos, Label: in.Label, Mnemonic: in.Op, Operands: exprs(in.Args)})
		}
		return a, nil
	case "":
		return nil, fmt.Errorf("expression mapping without kind")
	}
	return nil, fmt.Errorf("unknown expression kind %q", d.Kind)
}
