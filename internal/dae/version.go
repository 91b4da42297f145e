package dae

// IRVersion is the classified model schema version understood by this package.
const IRVersion = "0.1"
