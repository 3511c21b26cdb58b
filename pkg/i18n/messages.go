package i18n

import "golang.org/x/text/language"

var builtin = map[language.Tag]map[string]string{
	language.English: {
		RegexGeneral:     "Invalid regular expression: {error}",
		TemplateInvalid:  "Invalid replacement: {error}",
		ColumnNotInTable: "There is no column named “{column}”.",
	},
	language.Spanish: {
		RegexGeneral:     "Expresión regular no válida: {error}",
		TemplateInvalid:  "Reemplazo no válido: {error}",
		ColumnNotInTable: "No existe ninguna columna llamada «{column}».",
	},
}
