package indexes

import (
	"github.com/carverlane/archivist/server/utils"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
)

const DocumentsIndex = "documents"

func init() {
	Indexes[DocumentsIndex] = &types.TypeMapping{
		Properties: map[string]types.Property{
			"id":   types.LongNumberProperty{},
			"uuid": types.KeywordProperty{},
			"title": types.TextProperty{
				Analyzer: utils.NewPointer("english"),
				Fields: map[string]types.Property{
					"keyword": types.KeywordProperty{
						IgnoreAbove: utils.NewPointer(256),
					},
				},
			},
			"text": types.TextProperty{
				Analyzer: utils.NewPointer("english"),
			},
			"facets":          types.KeywordProperty{},
			"collection_uuid": types.KeywordProperty{},
			"collection_name": types.KeywordProperty{},
			"size_bytes":      types.LongNumberProperty{},
			"created_at":      types.DateProperty{},
			"updated_at":      types.DateProperty{},
		},
	}
}
