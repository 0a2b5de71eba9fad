package manifest

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
)

const (
	commonsHost = "commons.wikimedia.org"
	uploadBase  = "https://upload.wikimedia.org/wikipedia/commons/"
	filePrefix  = "File:"
)

// ResolveCommonsURL maps a Wikimedia Commons file page URL
// (https://commons.wikimedia.org/wiki/File:Name.jpg) to the media URL on
// upload.wikimedia.org. Other URLs are returned unchanged.
func ResolveCommonsURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host != commonsHost {
		return raw
	}

	last := u.Path[strings.LastIndex(u.Path, "/")+1:]
	if !strings.HasPrefix(last, filePrefix) {
		return raw
	}
	name := strings.ReplaceAll(strings.TrimPrefix(last, filePrefix), " ", "_")
	if name == "" {
		return raw
	}

	sum := md5.Sum([]byte(name))
	h := hex.EncodeToString(sum[:])
	return uploadBase + h[:1] + "/" + h[:2] + "/" + url.PathEscape(name)
}
