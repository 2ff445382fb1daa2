package hashkit

import "crypto/md5"

func md5Digest(in []byte) []byte {
	h := md5.New()
	h.Write(in)
	return h.Sum(nil)
}
