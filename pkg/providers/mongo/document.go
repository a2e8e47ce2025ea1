package mongo

import (
	"github.com/lightningdb/chililog/pkg/abstract"
	"go.mongodb.org/mongo-driver/bson"
)

// FieldPrefix keeps parsed fields apart from the system attributes of a document.
const FieldPrefix = "fld_"

const (
	KeyID           = "_id"
	KeyTimestamp    = "ts"
	KeySavedTime    = "saved_ts"
	KeySource       = "source"
	KeyHost         = "host"
	KeySeverity     = "severity"
	KeySeverityName = "severity_name"
	KeyMessage      = "message"
	KeyKeywords     = "keywords"
)

// Document is the stored shape of an entry.
func Document(entry *abstract.RepositoryEntry) bson.D {
	keywords := entry.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	doc := make(bson.D, 0, 9+len(entry.Fields))
	doc = append(doc,
		bson.E{Key: KeyID, Value: entry.ID},
		bson.E{Key: KeyTimestamp, Value: entry.Timestamp},
		bson.E{Key: KeySavedTime, Value: entry.SavedTimestamp},
		bson.E{Key: KeySource, Value: entry.Source},
		bson.E{Key: KeyHost, Value: entry.Host},
		bson.E{Key: KeySeverity, Value: int32(entry.Severity.Code())},
		bson.E{Key: KeySeverityName, Value: entry.Severity.String()},
		bson.E{Key: KeyMessage, Value: entry.Message},
		bson.E{Key: KeyKeywords, Value: keywords},
	)
	for _, f := range entry.Fields {
		doc = append(doc, bson.E{Key: FieldPrefix + f.Name, Value: f.Value})
	}
	return doc
}
