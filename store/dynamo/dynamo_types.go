package dynamo

import "strings"

// Every WireStore key maps to one partition. The sort key tells the shapes
// apart: a scalar lives at "V", a list at "L", hash fields at "F#<field>"
// and lex set members at "Z#<member>".
const (
	skValue       = "V"
	skList        = "L"
	skFieldPrefix = "F#"
	skLexPrefix   = "Z#"
)

type dynamoValue struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	S  string `dynamodbav:"S,omitempty"`
	N  int64  `dynamodbav:"N,omitempty"`
}

type dynamoList struct {
	PK string   `dynamodbav:"PK"`
	SK string   `dynamodbav:"SK"`
	L  []string `dynamodbav:"L"`
	V  int64    `dynamodbav:"V"`
}

type dynamoField struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	N  int64  `dynamodbav:"N"`
}

type dynamoKey struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
}

func fieldSK(field string) string {
	return skFieldPrefix + field
}

func lexSK(member string) string {
	return skLexPrefix + member
}

// Map sort key -> hash field or lex member
func fieldFromSK(sk string) string {
	return strings.TrimPrefix(sk, skFieldPrefix)
}

func memberFromSK(sk string) string {
	return strings.TrimPrefix(sk, skLexPrefix)
}
