package downloads

import (
	"golang.org/x/sys/unix"
	"howett.net/plist"
)

// whereFromsAttr is the extended attribute Safari and friends write on
// downloaded files: a binary plist holding the list of origin URLs.
const whereFromsAttr = "com.apple.metadata:kMDItemWhereFroms"

var _ OriginStore = XattrStore{}

// XattrStore reads origin URLs from the file's extended attributes. Every
// failure mode (no attribute, unreadable attribute, undecodable plist) means
// "this file carries no origin we can use" and reports ok=false.
type XattrStore struct{}

func (XattrStore) Origins(path string) ([]string, bool) {
	size, err := unix.Getxattr(path, whereFromsAttr, nil)
	if err != nil || size <= 0 {
		return nil, false
	}

	buf := make([]byte, size)
	n, err := unix.Getxattr(path, whereFromsAttr, buf)
	if err != nil {
		return nil, false
	}

	var urls []string
	if _, err := plist.Unmarshal(buf[:n], &urls); err != nil {
		return nil, false
	}
	return urls, true
}
