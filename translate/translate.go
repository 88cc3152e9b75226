// Package translate formats user visible messages for the current locale.
package translate

import (
	"errors"
	"log"

	"github.com/jeandeaual/go-locale"

	"golang.org/x/text/message"
)

var printer *message.Printer

func init() {
	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("um: locale: %v", err)
	}

	if len(locales) == 0 {
		locales = []string{"en-US"}
	}

	printer = message.NewPrinter(message.MatchLanguage(locales...))
}

// From an en-US Sprintf() format, translate to string.
func From(key message.Reference, args ...any) string {
	return printer.Sprintf(key, args...)
}

// Errorf translates a format into an error. A trailing error argument
// is kept in the chain so errors.Is and errors.As still see it.
func Errorf(key message.Reference, args ...any) error {
	err := errors.New(From(key, args...))
	if len(args) > 0 {
		if cause, ok := args[len(args)-1].(error); ok {
			err = &wrapped{msg: err.Error(), cause: cause}
		}
	}
	return err
}

type wrapped struct {
	msg   string
	cause error
}

func (w *wrapped) Error() string {
	return w.msg
}

func (w *wrapped) Unwrap() error {
	return w.cause
}
