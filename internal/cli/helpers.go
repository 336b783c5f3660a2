package cli

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/thoas/go-funk"

	"github.com/kubev2v/doc-processor/pkg/docconv"
)

var remoteSchemes = []string{"http", "https", "s3"}

type ErrInputNotFound struct {
	error
}

func NewErrInputNotFound(input string) *ErrInputNotFound {
	return &ErrInputNotFound{fmt.Errorf("input file %q does not exist", input)}
}

// isURL reports whether input names a remote document. Remote inputs are
// not checked for existence before the conversion.
func isURL(input string) bool {
	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return false
	}
	return funk.ContainsString(remoteSchemes, strings.ToLower(u.Scheme))
}

func checkInput(input string) error {
	if isURL(input) {
		return nil
	}
	if _, err := os.Stat(strings.TrimPrefix(input, "file://")); err != nil {
		if os.IsNotExist(err) {
			return NewErrInputNotFound(input)
		}
		return err
	}
	return nil
}

func supportedFormats() string {
	exts := funk.Map(docconv.SupportedFormats(), func(f docconv.Format) string {
		return "." + string(f)
	}).([]string)
	return strings.Join(exts, ", ")
}
