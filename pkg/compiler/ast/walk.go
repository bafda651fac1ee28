package ast

// Inspect calls fn for e and, while fn returns true, for each expression nested in it.
func Inspect(e Expr, fn func(Expr) bool) {
	if e == nil {
		return
	}
	e.Accept(&inspector{fn: fn})
}

type inspector struct {
	fn func(Expr) bool
}

func (in *inspector) visit(e Expr) bool {
	if e == nil {
		return false
	}
	return in.fn(e)
}

func (in *inspector) all(list []Expr) {
	for _, e := range list {
		Inspect(e, in.fn)
	}
}

func (in *inspector) VisitValue(n *Value) {
	if in.visit(n) {
		Inspect(n.Indexer, in.fn)
	}
}

func (in *inspector) VisitAssignment(n *Assignment) {
	if in.visit(n) {
		Inspect(n.Indexer, in.fn)
		Inspect(n.Value, in.fn)
	}
}

func (in *inspector) VisitBinary(n *Binary) {
	if in.visit(n) {
		Inspect(n.Left, in.fn)
		Inspect(n.Right, in.fn)
	}
}

func (in *inspector) VisitNary(n *Nary) {
	if in.visit(n) {
		in.all(n.Operands)
	}
}

func (in *inspector) VisitUnary(n *Unary) {
	if in.visit(n) {
		Inspect(n.Operand, in.fn)
	}
}

func (in *inspector) VisitCast(n *Cast) {
	if in.visit(n) {
		Inspect(n.Value, in.fn)
	}
}

func (in *inspector) VisitCall(n *Call) {
	if in.visit(n) {
		in.all(n.Args)
	}
}

func (in *inspector) VisitSend(n *Send) {
	if in.visit(n) {
		Inspect(n.TargetIndexer, in.fn)
		Inspect(n.TargetExpr, in.fn)
		for _, p := range n.Params {
			in.all(p.Args)
		}
	}
}

func (in *inspector) VisitRest(n *Rest) { in.visit(n) }

func (in *inspector) VisitReturn(n *Return) {
	if in.visit(n) {
		Inspect(n.Value, in.fn)
	}
}

func (in *inspector) VisitBlock(n *Block) {
	if in.visit(n) {
		in.all(n.Body)
	}
}

func (in *inspector) VisitIf(n *If) {
	if in.visit(n) {
		Inspect(n.Cond, in.fn)
		Inspect(n.Then, in.fn)
		Inspect(n.Else, in.fn)
	}
}

func (in *inspector) VisitWhile(n *While) {
	if in.visit(n) {
		Inspect(n.Cond, in.fn)
		in.all(n.Body)
	}
}

func (in *inspector) VisitFor(n *For) {
	if in.visit(n) {
		in.all(n.Init)
		Inspect(n.Cond, in.fn)
		in.all(n.Step)
		in.all(n.Body)
	}
}

func (in *inspector) VisitDo(n *Do) {
	if in.visit(n) {
		in.all(n.Body)
		Inspect(n.Cond, in.fn)
	}
}

func (in *inspector) VisitSwitch(n *Switch) {
	if in.visit(n) {
		Inspect(n.Value, in.fn)
		for _, c := range n.Cases {
			Inspect(c.Value, in.fn)
			in.all(c.Body)
		}
	}
}

func (in *inspector) VisitBreak(n *Break)       { in.visit(n) }
func (in *inspector) VisitContinue(n *Continue) { in.visit(n) }

func (in *inspector) VisitAsm(n *Asm) {
	if in.visit(n) {
		for _, i := range n.Body {
			in.all(i.Operands)
		}
	}
}
