// Package sizing maps the declared limits of a container onto the fixed set of
// instance sizes used by the fleet.
package sizing

import "github.com/solo-io/cluster-stats/pkg/models"

// Bucket is a named size class.
type Bucket = models.Bucket

const (
	Small     Bucket = "Small"
	Medium    Bucket = "Medium"
	Large     Bucket = "Large"
	XLarge    Bucket = "x-Large"
	XXLarge   Bucket = "xx-Large"
	XXXLarge  Bucket = "xxx-Large"
	XXXXLarge Bucket = "xxxx-Large"
	Other     Bucket = "other"
)

type rule struct {
	cpu    string
	memory string
	bucket Bucket
}

// rules are matched against the raw strings, so "1000m" is not "1".
var rules = []rule{
	{cpu: "1", memory: "8Gi", bucket: Small},
	{cpu: "2", memory: "16Gi", bucket: Medium},
	{cpu: "3", memory: "24Gi", bucket: Large},
	{cpu: "4", memory: "32Gi", bucket: XLarge},
	{cpu: "8", memory: "64Gi", bucket: XXLarge},
	{cpu: "16", memory: "128Gi", bucket: XXXLarge},
	{cpu: "32", memory: "256Gi", bucket: XXXXLarge},
}

// Classify returns the bucket whose cpu and memory strings both equal the given
// ones, or Other.
func Classify(cpu, memory string) Bucket {
	for _, r := range rules {
		if r.cpu == cpu && r.memory == memory {
			return r.bucket
		}
	}
	return Other
}

// Buckets lists every bucket in table order, Other last.
func Buckets() []Bucket {
	out := make([]Bucket, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.bucket)
	}
	return append(out, Other)
}

// Order returns the position of b in Buckets. Unknown names sort after Other.
func Order(b Bucket) int {
	for i, r := range rules {
		if r.bucket == b {
			return i
		}
	}
	if b == Other {
		return len(rules)
	}
	return len(rules) + 1
}
