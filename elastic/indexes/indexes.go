package indexes

import (
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
)

// Indexes maps index name suffixes to their mappings. Files in this package
// register themselves in init; the deployment prefix is applied when the
// indexes are migrated.
var Indexes = map[string]*types.TypeMapping{}
