package gatherer

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// obfuscated caches hashed names; the same namespace shows up once per pod
var obfuscated sync.Map

// ObfuscateName replaces name by the hex encoding of the first 16 bytes of its SHA-256
func ObfuscateName(name string) string {
	if name == "" {
		return ""
	}
	if v, ok := obfuscated.Load(name); ok {
		return v.(string)
	}

	sum := sha256.Sum256([]byte(name))
	hashed := hex.EncodeToString(sum[:16])
	obfuscated.Store(name, hashed)
	return hashed
}

// displayName returns the name as it should appear in the report
func displayName(name string, obfuscate bool) string {
	if obfuscate {
		return ObfuscateName(name)
	}
	return name
}
