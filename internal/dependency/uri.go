package dependency

import "fmt"

// Uri is a dependency-tree leaf for SRC_URI entries: a fetch URL and an
// optional renamed local filename ("uri -> filename" syntax).
type Uri struct {
	uri      string
	fileName *string
}

func NewUri(uri string, fileName *string) *Uri {
	return &Uri{uri: uri, fileName: fileName}
}

func (u *Uri) Uri() string       { return u.uri }
func (u *Uri) FileName() *string { return u.fileName }

func (u *Uri) String() string {
	if u.fileName != nil {
		return fmt.Sprintf("%s -> %s", u.uri, *u.fileName)
	}
	return u.uri
}
