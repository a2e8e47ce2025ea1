package codes

import "github.com/lightningdb/chililog/pkg/errors/coded"

var (
	// generic
	Unspecified = coded.Register("generic", "unspecified")
	Dial        = coded.Register("generic", "dial_error")

	// parsing
	FieldParse       = coded.Register("parse", "field")
	EntryParse       = coded.Register("parse", "entry")
	NoMatchingParser = coded.Register("parse", "no_matching_parser")

	// repository
	RepositoryState  = coded.Register("repository", "state")
	RepositoryConfig = coded.Register("repository", "config")
	UnknownRepo      = coded.Register("repository", "unknown")

	// storage
	StoreSave = coded.Register("store", "save")

	// queue
	QueuePublish = coded.Register("queue", "publish")
	QueueReceive = coded.Register("queue", "receive")
)

func init() {
	coded.RegisterShortDescription(FieldParse, "a field value cannot be coerced to its data type and has no usable default")
	coded.RegisterShortDescription(EntryParse, "a message cannot be turned into a repository entry")
	coded.RegisterShortDescription(NoMatchingParser, "no parser of the repository applies to the message source and host")
	coded.RegisterShortDescription(RepositoryState, "the operation is not allowed in the current repository status")
	coded.RegisterShortDescription(RepositoryConfig, "the repository configuration is invalid")
	coded.RegisterShortDescription(UnknownRepo, "the repository is not configured")
	coded.RegisterShortDescription(StoreSave, "an entry could not be written to the document store")
	coded.RegisterShortDescription(QueuePublish, "a message could not be published to the input queue")
	coded.RegisterShortDescription(QueueReceive, "the input queue could not be read")
}
