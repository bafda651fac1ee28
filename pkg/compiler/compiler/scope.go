package compiler

// outputContext says where the value of the expression being lowered goes.
type outputContext int

const (
	ocUnknown outputContext = iota
	ocStack
	ocAcc
)

func (o outputContext) String() string {
	switch o {
	case ocStack:
		return "stack"
	case ocAcc:
		return "accumulator"
	}
	return "unknown"
}

// modifier is a pending ++ or -- waiting for the next variable reference.
type modifier int

const (
	modNone modifier = iota
	modInc
	modDec
)

// scope is the dynamically scoped lowering state. Every field is a stack
// changed only through the with* guards, whose returned func restores the
// previous value:
//
//	defer c.withOutput(ocAcc)()
type scope struct {
	output      []outputContext
	meaning     []bool
	conditional []bool
	modifiers   []modifier
}

func (c *Compiler) withOutput(oc outputContext) func() {
	c.output = append(c.output, oc)
	n := len(c.output)
	return func() { c.output = c.output[:n-1] }
}

func (c *Compiler) out() outputContext {
	if len(c.output) == 0 {
		panic("compiler: output context read outside any scope")
	}
	return c.output[len(c.output)-1]
}

func (c *Compiler) withMeaning(m bool) func() {
	c.meaning = append(c.meaning, m)
	n := len(c.meaning)
	return func() { c.meaning = c.meaning[:n-1] }
}

// hasMeaning reports whether the value being lowered is used by someone.
func (c *Compiler) hasMeaning() bool {
	if len(c.meaning) == 0 {
		return true
	}
	return c.meaning[len(c.meaning)-1]
}

func (c *Compiler) withConditional(on bool) func() {
	c.conditional = append(c.conditional, on)
	n := len(c.conditional)
	return func() { c.conditional = c.conditional[:n-1] }
}

// inConditional reports whether the value being lowered is the test of a branch.
func (c *Compiler) inConditional() bool {
	if len(c.conditional) == 0 {
		return false
	}
	return c.conditional[len(c.conditional)-1]
}

func (c *Compiler) withModifier(m modifier) func() {
	c.modifiers = append(c.modifiers, m)
	n := len(c.modifiers)
	return func() { c.modifiers = c.modifiers[:n-1] }
}

// takeModifier consumes the pending modifier.
func (c *Compiler) takeModifier() modifier {
	if len(c.modifiers) == 0 {
		return modNone
	}
	m := c.modifiers[len(c.modifiers)-1]
	c.modifiers[len(c.modifiers)-1] = modNone
	return m
}

func (c *Compiler) pendingModifier() modifier {
	if len(c.modifiers) == 0 {
		return modNone
	}
	return c.modifiers[len(c.modifiers)-1]
}
