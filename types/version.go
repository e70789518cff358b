package types

// Version is the canonical project version.
// All components (CLI, chunk stream contract, chat resource contract) share
// this version per the lockstep versioning policy.
const Version = "0.3.0"
