package dataset

import (
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Language returns the English name of the language a dataset covers,
// e.g. "Turkish" for "tr". Wikipedia mirrors are named after the language
// code of their edition. It returns "" when name is not a known code.
func Language(name string) string {
	tag, err := language.Parse(name)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	return display.English.Languages().Name(base)
}
