package factor

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

// descriptor is the wire shape of one share description document as stored by
// the threshold-key service. DateAdded is a millisecond unix timestamp.
type descriptor struct {
	Module     string `json:"module"`
	DateAdded  int64  `json:"dateAdded"`
	ShareIndex int    `json:"tssShareIndex"`
	Browser    string `json:"browser"`
}

// ParseDescriptors converts the raw share-description map into Factor records,
// dropping entries with no descriptor documents. A descriptor that fails to
// parse still yields a factor for its public identifier, classified as
// ModuleOther, so the share remains visible and deletable.
func ParseDescriptors(shareDescriptions map[string][]string) []interfaces.Factor {
	factors := make([]interfaces.Factor, 0, len(shareDescriptions))
	for pub, docs := range shareDescriptions {
		if len(docs) == 0 {
			continue
		}

		var d descriptor
		if err := json.Unmarshal([]byte(docs[0]), &d); err != nil || d.Module == "" {
			factors = append(factors, interfaces.Factor{PubKey: pub, Module: interfaces.ModuleOther})
			continue
		}

		factors = append(factors, interfaces.Factor{
			PubKey:     pub,
			Module:     interfaces.ModuleKind(d.Module),
			ShareIndex: d.ShareIndex,
			DateAdded:  time.UnixMilli(d.DateAdded).UTC(),
			Device:     d.Browser,
		})
	}

	sort.Slice(factors, func(i, j int) bool { return factors[i].PubKey < factors[j].PubKey })
	return factors
}

func filterByModule(factors []interfaces.Factor, module interfaces.ModuleKind) []interfaces.Factor {
	var out []interfaces.Factor
	for _, f := range factors {
		if f.Module == module {
			out = append(out, f)
		}
	}
	return out
}
