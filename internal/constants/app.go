package constants

import (
	"time"
)

// Transfer batching
const (
	// InsertBatchSize - documents per InsertMany call during restore (1000)
	// Matches the driver's practical sweet spot: large enough to amortize
	// round trips, small enough to keep command documents under 16 MB for
	// typical document sizes.
	InsertBatchSize = 1000

	// MaxBatchBytes - soft cap on the encoded size of one insert batch (12 MB)
	// The server rejects command documents over 16 MB; the batcher flushes
	// early when the running encoded size crosses this line.
	MaxBatchBytes = 12 * 1024 * 1024

	// ProgressDocInterval - emit a progress event at most once per this many
	// documents when batches are small (keeps the bus quiet on tiny collections)
	ProgressDocInterval = 500

	// MaxDocumentBytes - scanner limit for one JSON-lines document (48 MB)
	// The extended JSON form of a 16 MB BSON document can expand severalfold.
	MaxDocumentBytes = 48 * 1024 * 1024
)

// Event system
const (
	// EventBusDefaultBuffer - default buffer size for subscriber channels (256)
	// A transfer emits at most one progress event per insert batch, so even a
	// stalled UI has seconds of headroom before the bus starts dropping.
	EventBusDefaultBuffer = 256

	// BridgeBuffer - buffer for the bus-to-UI bridge channel (100)
	BridgeBuffer = 100
)

// ETA estimation
const (
	// EtaWindowSize - number of recent samples the rate window keeps (20)
	EtaWindowSize = 20

	// EtaMinSamples - samples required before an estimate is produced (2)
	EtaMinSamples = 2
)

// Archive format
const (
	// ManifestName - manifest file at the root of every archive
	ManifestName = "manifest.json"

	// ArchiveExt - extension for packed snapshot archives
	ArchiveExt = ".mongohaul.tar.gz"

	// ManifestFormatVersion - current manifest schema version
	ManifestFormatVersion = 2
)

// Disk space
const (
	// DiskSafetyMargin - multiplier applied to required bytes before unpack (1.2)
	// Covers the staging copy plus tar block padding.
	DiskSafetyMargin = 1.2
)

// Mongo connection
const (
	// MongoConnectTimeout - default server selection timeout for new clients
	MongoConnectTimeout = 10 * time.Second

	// MongoCompressor - wire compression negotiated with the server
	MongoCompressor = "snappy"
)

// HTTP transport
const (
	// HTTPDialTimeout - TCP dial timeout for archive fetches
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for fetch connections
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPIdleConnTimeout - idle connection lifetime
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - TLS handshake deadline
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// FetchRetryMax - retryablehttp attempts beyond the first for archive GETs
	FetchRetryMax = 5

	// FetchRetryWaitMin - initial retry backoff
	FetchRetryWaitMin = 1 * time.Second

	// FetchRetryWaitMax - retry backoff ceiling
	FetchRetryWaitMax = 30 * time.Second
)
