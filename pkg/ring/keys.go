package ring

import (
	"crypto/md5"
	"encoding/hex"
)

// BucketKey is the routing key for bucket metadata: owner and bucket name.
func BucketKey(owner, bucket string) string {
	return owner + ":" + bucket
}

// ObjectKey is the routing key for object metadata. The object name enters
// as its MD5 hex rather than raw, so the tuple that determines placement is
// reproducible from the fixed-size fields present on a storage node.
func ObjectKey(owner, bucketID, objectName string) string {
	return owner + ":" + bucketID + ":" + ObjectNameHash(objectName)
}

// ObjectNameHash returns the MD5 hex digest of an object name.
func ObjectNameHash(name string) string {
	sum := md5.Sum([]byte(name))
	return hex.EncodeToString(sum[:])
}
