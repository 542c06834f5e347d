package types

// Version is the canonical project version.
// The CLI, the checkpoint format and the adapter payload share this version
// per the lockstep versioning policy.
const Version = "0.1.0"

// ContractVersion is stamped into adapter payloads and checkpoint frames.
const ContractVersion = Version
