package projection

// Command names an Event's mutation kind. "parse" is semantically an update
// (SPEC_FULL.md §3.1); it exists as a distinct string because the ledger
// emits it for a handful of event kinds that update via re-parsing rather
// than patching, but the translator treats it identically to "update".
type Command string

const (
	CommandInsert Command = "insert"
	CommandUpdate Command = "update"
	CommandParse  Command = "parse"
)

// Event is one immutable record produced by the primary ledger (SPEC_FULL.md
// §3.1). It is the unit of projection work: the translator converts one
// Event into a domain mutation plus a captured inverse.
type Event struct {
	MessageIndex int64
	BlockIndex   int64
	Event        string
	Category     string
	Command      Command
	Bindings     *Bindings
	TxHash       string
	EventHash    string
}

// MempoolEvent is one row of the PLS mempool snapshot (SPEC_FULL.md §6.1.2).
// It carries no message_index or event_hash: mempool events are not part of
// the durable total order, only a transient view rebuilt on every pass.
type MempoolEvent struct {
	TxHash    string
	Command   Command
	Category  string
	Event     string
	Bindings  *Bindings
	Timestamp int64
}

// SkipEvents is the set of event kinds that are persisted to messages but
// generate no domain mutation (SPEC_FULL.md §4.1).
var SkipEvents = map[string]bool{
	"NEW_TRANSACTION_OUTPUT": true,
}

// xcpDestroyingEvents is the set of event kinds that burn XCP fees
// (SPEC_FULL.md §4.2.4).
var xcpDestroyingEvents = map[string]bool{
	"ASSET_ISSUANCE":   true,
	"ASSET_DESTRUCTION": true,
	"SWEEP":            true,
	"ASSET_DIVIDEND":   true,
}
