package duckdbsql

import (
	"fmt"
	"strings"
)

// Format renders a statement as flat SQL text. Identifiers are always
// double-quoted; function names and type names are written as parsed.
func Format(stmt *SelectStmt) string {
	return render(stmt)
}

// FormatExpr renders a single expression.
func FormatExpr(expr Expr) string {
	return render(expr)
}

// FormatTableRef renders a single FROM item.
func FormatTableRef(ref TableRef) string {
	return render(ref)
}

func render(n any) string {
	var p printer
	p.printf("%v", n)
	return strings.TrimSpace(p.buf.String())
}

// QuoteIdent double-quotes s, doubling any embedded double quote.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// printer accumulates SQL text. Its printf understands three verbs:
//
//	%v  an AST node, or a slice of nodes separated by ", "
//	%i  a quoted identifier, or a []string of them separated by ", "
//	%s  any value written with fmt.Sprint
type printer struct {
	buf strings.Builder
}

func (p *printer) printf(format string, args ...any) {
	next := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 == len(format) {
			p.buf.WriteByte(c)
			continue
		}
		i++
		if format[i] == '%' {
			p.buf.WriteByte('%')
			continue
		}
		if next >= len(args) {
			panic(fmt.Sprintf("duckdbsql: missing argument for %%%c in %q", format[i], format))
		}
		arg := args[next]
		next++
		switch format[i] {
		case 'v':
			p.node(arg)
		case 'i':
			p.ident(arg)
		case 's':
			fmt.Fprint(&p.buf, arg)
		default:
			panic(fmt.Sprintf("duckdbsql: unknown verb %%%c", format[i]))
		}
	}
}

func (p *printer) ident(arg any) {
	switch v := arg.(type) {
	case string:
		p.buf.WriteString(QuoteIdent(v))
	case []string:
		for i, s := range v {
			if i > 0 {
				p.buf.WriteString(", ")
			}
			p.buf.WriteString(QuoteIdent(s))
		}
	default:
		panic(fmt.Sprintf("duckdbsql: %T is not an identifier", arg))
	}
}

// node dispatches on the dynamic type of n. A nil node prints nothing.
func (p *printer) node(n any) {
	switch v := n.(type) {
	case nil:
	case Expr:
		p.expr(v)
	case TableRef:
		p.tableRef(v)
	case *SelectStmt:
		p.selectStmt(v)
	case *SelectBody:
		p.selectBody(v)
	case *SelectCore:
		p.selectCore(v)
	case SelectItem:
		p.selectItem(v)
	case *Join:
		p.join(v)
	case *WindowSpec:
		p.windowSpec(v)
	case *FrameBound:
		p.frameBound(v)
	case OrderByItem:
		p.orderByItem(v)
	case []Expr:
		printList(p, v)
	case []OrderByItem:
		printList(p, v)
	case []SelectItem:
		printList(p, v)
	case []StarModifier:
		for _, m := range v {
			p.starModifier(m)
		}
	default:
		panic(fmt.Sprintf("duckdbsql: cannot format %T", n))
	}
}

func printList[T any](p *printer, items []T) {
	for i, item := range items {
		if i > 0 {
			p.buf.WriteString(", ")
		}
		p.node(item)
	}
}
