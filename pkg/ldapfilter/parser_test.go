package ldapfilter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diagnosticKinds(m *Model) []ErrorKind {
	var kinds []ErrorKind
	for _, d := range m.Diagnostics() {
		kinds = append(kinds, d.Kind)
	}
	return kinds
}

func TestParseValidRoundTrip(t *testing.T) {
	tests := []string{
		"(cn=Babs Jensen)",
		"(!(cn=Tim Howes))",
		"(&(objectClass=Person)(|(sn=Jensen)(cn=Babs J*)))",
		"(o=univ*of*mich*)",
		"(seeAlso=)",
		"(cn:caseExactMatch:=Fred Flintstone)",
		"(cn:=Betty Rubble)",
		"(sn:dn:2.4.6.8.10:=Barney Rubble)",
		"(o:dn:=Ace Industry)",
		"(:1.2.3:=Wilma Flintstone)",
		"(:DN:2.4.6.8.10:=Dino)",
		`(o=Parens R Us \28for all your parenthetical needs\29)`,
		`(filename=C:\5cMyFile)`,
		"(objectClass=*)",
		"(uidNumber>=1000)",
		"(uidNumber<=1000)",
		"(sn~=Jensen)",
		"(cn=*Jensen)",
		"(cn=Babs*)",
		"(cn=**)",
		"(2.5.4.3=Babs)",
		"(cn;lang-en=Babs)",
		"(!(&(a=b)(c=d)))",
		"(|(&(a=b)(!(c=d)))(e=*))",
	}

	p := NewParser()
	for _, filter := range tests {
		t.Run(filter, func(t *testing.T) {
			m := p.Parse(filter)
			assert.True(t, m.IsValid(), "diagnostics: %v", m.Diagnostics())
			assert.Equal(t, CompleteValid, m.State())
			assert.True(t, m.Root().Valid())
			assert.Equal(t, filter, m.String())
			assert.Equal(t, filter, m.UserProvidedString())
			assert.NoError(t, m.Err())
		})
	}
}

func TestParseCanonicalization(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		valid bool
	}{
		{"escaped asterisk", `(cn=*\2A*)`, `(cn=*\2a*)`, true},
		{"utf-8 escapes", `(sn=Lu\c4\8di\c4\87)`, "(sn=Lučić)", true},
		{"ascii escapes", `(cn=\48\69)`, "(cn=Hi)", true},
		{"double asterisk in substring", "(cn=a**b)", "(cn=a*b)", true},
		{"short escapes", `(cn=\(\*\))`, `(cn=\28\2a\29)`, true},
		{"whitespace between filters", "(&\n  (objectClass=person)\n  (cn=a*)\n)", "(&(objectClass=person)(cn=a*))", true},
		{"whitespace after operators", "(| (a=b) (! (c=d)) )", "(|(a=b)(!(c=d)))", true},
		{"value whitespace kept", "(cn= a b )", "(cn= a b )", true},
		{"trailing asterisk on ordering match", "(objectClass>=z*) ", "(objectClass>=)", false},
		{"leading content", "x(cn=a)", "(cn=a)", false},
		{"trailing content", "(cn=a)(sn=b)", "(cn=a)", false},
		{"missing close", "(cn=a", "(cn=a)", false},
		{"missing close nested", "(&(cn=a)", "(&(cn=a))", false},
		{"garbage operand", "(&(cn=a)garbage)", "(&(cn=a))", false},
		{"extra negation operand", "(!(a=b)(c=d))", "(!(a=b))", false},
		{"whitespace in item", "(cn =a)", "(cn=a)", false},
		{"empty component", "()", "", false},
		{"empty", "", "", false},
		{"invalid escape", `(cn=a\zz)`, `(cn=a\5czz)`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Parse(tt.input)
			assert.Equal(t, tt.want, m.String())
			assert.Equal(t, tt.valid, m.IsValid(), "diagnostics: %v", m.Diagnostics())
			assert.Equal(t, tt.input, m.UserProvidedString())
		})
	}
}

func TestParseSurroundingWhitespace(t *testing.T) {
	input := " (&\n (objectClass=person)\n (cn=a*)\n) "

	m := Parse(input)
	assert.False(t, m.IsValid())
	assert.Equal(t, CompleteInvalid, m.State())
	assert.Equal(t, "(&(objectClass=person)(cn=a*))", m.String())
	assert.Equal(t, input, m.UserProvidedString())
	assert.Equal(t, []ErrorKind{UnexpectedToken, TrailingContent}, diagnosticKinds(m))

	// The filter itself is well-formed.
	assert.True(t, m.Root().Valid())
	and, ok := m.Root().(*AndFilter)
	require.True(t, ok)
	assert.Len(t, and.Operands, 2)
	assert.Equal(t, input[1:len(input)-1], and.Source())
}

func TestParseDiagnostics(t *testing.T) {
	tests := []struct {
		input  string
		kinds  []ErrorKind
		offset int
		length int
		state  State
	}{
		{"(objectClass>=z*) ", []ErrorKind{UnexpectedToken, TrailingContent}, 15, 1, CompleteInvalid},
		{"(cn=a", []ErrorKind{UnbalancedParenthesis}, 0, 1, Truncated},
		{"(&(cn=a)", []ErrorKind{UnbalancedParenthesis}, 0, 1, Truncated},
		{"(", []ErrorKind{UnbalancedParenthesis}, 0, 1, Truncated},
		{"", []ErrorKind{UnexpectedToken}, 0, 0, Truncated},
		{"   ", []ErrorKind{UnexpectedToken}, 0, 3, Truncated},
		{"()", []ErrorKind{MissingOperator}, 0, 2, CompleteInvalid},
		{"(&)", []ErrorKind{EmptyFilterList}, 1, 1, CompleteInvalid},
		{"(|)", []ErrorKind{EmptyFilterList}, 1, 1, CompleteInvalid},
		{"(!)", []ErrorKind{UnexpectedToken}, 1, 1, CompleteInvalid},
		{"(cn)", []ErrorKind{MissingOperator}, 1, 2, CompleteInvalid},
		{"(cn~a)", []ErrorKind{MissingOperator}, 3, 1, CompleteInvalid},
		{`(cn=a\zz)`, []ErrorKind{InvalidEscapeSequence}, 5, 2, CompleteInvalid},
		{`(cn=a\`, []ErrorKind{UnbalancedParenthesis, InvalidEscapeSequence}, 0, 1, Truncated},
		{"(c_n=a)", []ErrorKind{InvalidAttributeDescription}, 1, 3, CompleteInvalid},
		{"(1.=a)", []ErrorKind{InvalidAttributeDescription}, 1, 2, CompleteInvalid},
		{"(cn;=a)", []ErrorKind{InvalidAttributeDescription}, 1, 3, CompleteInvalid},
		{"(=a)", []ErrorKind{InvalidAttributeDescription}, 1, 1, CompleteInvalid},
		{"(:=a)", []ErrorKind{InvalidAttributeDescription}, 1, 2, CompleteInvalid},
		{"(cn:1..2:=a)", []ErrorKind{InvalidAttributeDescription}, 4, 4, CompleteInvalid},
		{"(cn:dn>=a)", []ErrorKind{UnexpectedToken}, 6, 2, CompleteInvalid},
		{"(cn =a)", []ErrorKind{UnexpectedToken}, 3, 1, CompleteInvalid},
		{"( cn=a)", []ErrorKind{UnexpectedToken}, 1, 1, CompleteInvalid},
		{"(cn=a)x", []ErrorKind{TrailingContent}, 6, 1, CompleteInvalid},
		{"x(cn=a)", []ErrorKind{UnexpectedToken}, 0, 1, CompleteInvalid},
		{"(cn>=a*b)", []ErrorKind{UnexpectedToken}, 6, 1, CompleteInvalid},
		{"(!(a=b)(c=d))", []ErrorKind{UnexpectedToken}, 7, 5, CompleteInvalid},
		{"(&(a=b)x)", []ErrorKind{UnexpectedToken}, 7, 1, CompleteInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m := Parse(tt.input)
			assert.False(t, m.IsValid())
			assert.Equal(t, tt.state, m.State())
			assert.Equal(t, tt.kinds, diagnosticKinds(m))

			diags := m.Diagnostics()
			require.NotEmpty(t, diags)
			assert.Equal(t, tt.offset, diags[0].Offset)
			assert.Equal(t, tt.length, diags[0].Length)

			err := m.Err()
			require.Error(t, err)
			assert.Equal(t, diags[0], err)
		})
	}
}

func TestParseTree(t *testing.T) {
	m := Parse("(&(cn=a*b*c)(!(uid>=10))(:dn:1.2.3:=x))")
	require.True(t, m.IsValid())

	and, ok := m.Root().(*AndFilter)
	require.True(t, ok)
	require.Len(t, and.Operands, 3)
	assert.Equal(t, Span{Start: 0, End: 39}, and.Span())

	sub, ok := and.Operands[0].(*ItemFilter)
	require.True(t, ok)
	assert.Equal(t, Substring, sub.Type)
	assert.Equal(t, "cn", sub.Attribute)
	assert.Equal(t, Span{Start: 3, End: 5}, sub.AttributeSpan)
	require.NotNil(t, sub.Substring)
	assert.Equal(t, "a", sub.Substring.Initial)
	assert.Equal(t, []string{"b"}, sub.Substring.Any)
	assert.Equal(t, "c", sub.Substring.Final)
	assert.Equal(t, Span{Start: 6, End: 11}, sub.Substring.Span)
	assert.Equal(t, "(cn=a*b*c)", sub.Source())
	assert.Equal(t, "(cn=a*b*c)", m.Source(sub))

	not, ok := and.Operands[1].(*NotFilter)
	require.True(t, ok)
	ge, ok := not.Operand.(*ItemFilter)
	require.True(t, ok)
	assert.Equal(t, GreaterOrEqual, ge.Type)
	assert.Equal(t, "10", ge.Value)
	assert.Equal(t, Span{Start: 20, End: 22}, ge.ValueSpan)

	ext, ok := and.Operands[2].(*ItemFilter)
	require.True(t, ok)
	assert.Equal(t, Extensible, ext.Type)
	require.NotNil(t, ext.Extensible)
	assert.Equal(t, "", ext.Extensible.Attribute)
	assert.True(t, ext.Extensible.DNAttributes)
	assert.Equal(t, "1.2.3", ext.Extensible.MatchingRule)
	assert.Equal(t, "x", ext.Extensible.Value)
	assert.Equal(t, Span{Start: 25, End: 37}, ext.Extensible.Span)
}

func TestParseExtensibleSpanWithoutAttribute(t *testing.T) {
	for _, input := range []string{"(:=a)", "(:=a"} {
		t.Run(input, func(t *testing.T) {
			m := Parse(input)
			assert.False(t, m.IsValid())

			item, ok := m.Root().(*ItemFilter)
			require.True(t, ok)
			require.NotNil(t, item.Extensible)
			assert.Equal(t, Span{Start: 1, End: 4}, item.Extensible.Span)
		})
	}
}

func TestDiagnosticsAreCopies(t *testing.T) {
	m := Parse("(&)")
	require.Len(t, m.Diagnostics(), 1)

	m.Diagnostics()[0].Offset = 42
	var d *Diagnostic
	require.ErrorAs(t, m.Err(), &d)
	d.Kind = TrailingContent

	assert.Equal(t, 1, m.Diagnostics()[0].Offset)
	assert.Equal(t, EmptyFilterList, m.Diagnostics()[0].Kind)
	assert.False(t, m.IsValid())
}

func TestParseInvalidSubtree(t *testing.T) {
	m := Parse("(|(cn=a)(sn=b\\zz))")
	require.False(t, m.IsValid())

	or, ok := m.Root().(*OrFilter)
	require.True(t, ok)
	require.Len(t, or.Operands, 2)
	assert.False(t, or.Valid())
	assert.True(t, or.Operands[0].Valid())
	assert.False(t, or.Operands[1].Valid())
}

func TestParseEmptyRoot(t *testing.T) {
	m := Parse("")
	require.NotNil(t, m.Root())

	invalid, ok := m.Root().(*InvalidFilter)
	require.True(t, ok)
	assert.False(t, invalid.Valid())
	assert.Equal(t, "", invalid.String())
	assert.Equal(t, Span{}, invalid.Span())
}

func TestParserReuse(t *testing.T) {
	p := NewParser()

	first := p.Parse("(&(cn=a")
	assert.Equal(t, Truncated, first.State())

	second := p.Parse("(cn=b)")
	assert.True(t, second.IsValid())
	assert.Empty(t, second.Diagnostics())
	assert.Equal(t, "(cn=b)", second.String())

	// Earlier models are not affected by later parses.
	assert.Equal(t, "(&(cn=a))", first.String())
	assert.Len(t, first.Diagnostics(), 2)
}

func TestParseIdempotentCanonicalForm(t *testing.T) {
	tests := []string{
		"(&(objectClass=person)(cn=a*))",
		" (&\n (objectClass=person)\n (cn=a*)\n) ",
		"(objectClass>=z*) ",
		`(cn=*\2A*)`,
		`(cn=a\zz)`,
		"(!)",
		"()",
		"(&)",
		"(=a)",
		"(:=a)",
		"(cn:foo:bar:=x)",
		"(cn:dn:dn:=x)",
		"(cn=**)",
		"(cn=a",
		"x(cn=a)",
		"(&(a=b)garbage(c=d))",
		"((cn=a))",
		")(",
		"\xff(cn=\xfe)",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			canonical := Parse(input).String()
			assert.Equal(t, canonical, Parse(canonical).String())
		})
	}
}

func TestWalk(t *testing.T) {
	m := Parse("(&(a=b)(|(c=d)(!(e=f))))")
	require.True(t, m.IsValid())

	var visited []string
	Walk(m.Root(), func(n Node) bool {
		if item, ok := n.(*ItemFilter); ok {
			visited = append(visited, item.Attribute)
		}
		_, isNot := n.(*NotFilter)
		return !isNot
	})
	assert.Equal(t, []string{"a", "c"}, visited)
}

func TestParseDeepUnterminated(t *testing.T) {
	const depth = 50000
	m := Parse(strings.Repeat("(&", depth))

	assert.Equal(t, Truncated, m.State())
	assert.GreaterOrEqual(t, len(m.Diagnostics()), depth)

	ands, valid := 0, 0
	Walk(m.Root(), func(n Node) bool {
		if _, ok := n.(*AndFilter); ok {
			ands++
		}
		if n.Valid() {
			valid++
		}
		return true
	})
	assert.Equal(t, depth, ands)
	assert.Zero(t, valid)
}

func BenchmarkParse(b *testing.B) {
	filter := "(&(objectClass=inetOrgPerson)(|(uid=jdoe)(mail=jdoe@example.com)(cn=John*Doe))(!(pwdAccountLockedTime=*)))"
	p := NewParser()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Parse(filter)
	}
}

func BenchmarkParseDeepUnterminated(b *testing.B) {
	filter := strings.Repeat("(&", 10000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Parse(filter)
	}
}
