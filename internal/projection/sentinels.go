package projection

// MempoolBlockIndex is the sentinel block index the ledger contract uses to
// mark an event as unconfirmed. Any messages/domain row carrying this value
// belongs to the mempool projection, never to a confirmed block.
const MempoolBlockIndex int64 = 9999999

// Reserved asset identifiers seeded into assets_info at bootstrap.
const (
	BTCAssetID = "0"
	XCPAssetID = "1"

	BTCAssetName = "BTC"
	XCPAssetName = "XCP"
)

// IsMempool reports whether a block index denotes the mempool sentinel.
func IsMempool(blockIndex int64) bool {
	return blockIndex == MempoolBlockIndex
}
