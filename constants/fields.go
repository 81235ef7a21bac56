package constants

import (
	"strings"
)

// Field names recognised in caption blocks.
const (
	FieldApelante      = "APELANTE"
	FieldApelantes     = "APELANTES"
	FieldApelado       = "APELADO"
	FieldAgravante     = "AGRAVANTE"
	FieldAgravado      = "AGRAVADO"
	FieldAgravada      = "AGRAVADA"
	FieldEmbargante    = "EMBARGANTE"
	FieldEmbargado     = "EMBARGADO"
	FieldValor         = "R$"
	FieldApelacaoCivel = "Apelação Cível nº"
	FieldApelacaoCrime = "Apelação Criminal nº"
	FieldProcesso      = "PROCESSO"
)

// PartyRole groups party labels into the active and passive side of an appeal.
type PartyRole string

const (
	RoleActive  PartyRole = "POLO_ATIVO"
	RolePassive PartyRole = "POLO_PASSIVO"
	RoleNone    PartyRole = ""
)

var partyRoles = map[string]PartyRole{
	FieldApelante:   RoleActive,
	FieldApelantes:  RoleActive,
	FieldAgravante:  RoleActive,
	FieldEmbargante: RoleActive,
	FieldApelado:    RolePassive,
	FieldAgravado:   RolePassive,
	FieldAgravada:   RolePassive,
	FieldEmbargado:  RolePassive,
}

// PartyFields lists the party labels in default precedence order.
var PartyFields = []string{
	FieldApelante,
	FieldApelantes,
	FieldApelado,
	FieldAgravante,
	FieldAgravado,
	FieldAgravada,
	FieldEmbargante,
	FieldEmbargado,
}

// RoleOf returns the party side a field name belongs to, RoleNone for
// non-party fields such as amounts and case numbers.
func RoleOf(field string) PartyRole {
	if r, ok := partyRoles[strings.ToUpper(strings.TrimSpace(field))]; ok {
		return r
	}
	return RoleNone
}
