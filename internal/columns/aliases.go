package columns

import "github.com/JonMunkholm/moodlelogsmart/internal/core"

// aliases lists the known header names for each canonical field, English
// first, then Portuguese. Order is significant: the first alias wins ties.
// No alias may appear under two fields.
var aliases = map[core.Field][]string{
	core.FieldTime: {
		"Time",
		"Timestamp",
		"Date/Time",
		"Event time",
		"DateTime",
		"Date and time",
		"Hora",
		"Horário",
		"Data/Hora",
		"Data e hora",
	},
	core.FieldUserFullName: {
		"User full name",
		"Full name",
		"User name",
		"Name",
		"Username",
		"User",
		"Nome completo",
		"Nome do usuário",
		"Nome",
		"Usuário",
	},
	core.FieldEventName: {
		"Event name",
		"Event",
		"Action",
		"Event type",
		"Activity",
		"Nome do evento",
		"Evento",
		"Ação",
		"Tipo de evento",
	},
	core.FieldComponent: {
		"Component",
		"Event component",
		"Module",
		"Component name",
		"Componente",
		"Módulo",
		"Componente do evento",
	},
	core.FieldEventContext: {
		"Event context",
		"Context",
		"Course",
		"Resource",
		"Activity context",
		"Contexto do evento",
		"Contexto",
		"Curso",
		"Recurso",
	},
	core.FieldDescription: {
		"Description",
		"Details",
		"Info",
		"Information",
		"Event description",
		"Descrição",
		"Detalhes",
		"Informação",
		"Descrição do evento",
	},
	core.FieldAffectedUser: {
		"Affected user",
		"Related user",
		"Target user",
		"Usuário afetado",
		"Usuário relacionado",
	},
	core.FieldOrigin: {
		"Origin",
		"Source",
		"Event origin",
		"Origem",
		"Fonte",
	},
	core.FieldIPAddress: {
		"IP address",
		"IP",
		"User IP",
		"Client IP",
		"Endereço IP",
		"Endereço de IP",
	},
}

// Aliases returns a copy of the alias list for f.
func Aliases(f core.Field) []string {
	return append([]string(nil), aliases[f]...)
}
