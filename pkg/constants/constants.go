package constants

const NumRegisters int = 32

// Memory is word addressed: 4 Mi words of 32 bits.
const MemoryCapacityWords int = 1 << 22

const WordSize int = 4

const MaxImageBytes int = MemoryCapacityWords * WordSize

const DefaultStepBudget uint64 = 1_000_000

const MemoryPageWords int = 1 << 10

const SnapshotDataShards int = 4

const SnapshotParityShards int = 2

const ProtocolVersion uint8 = 1

const MaxMessageSize uint32 = 1 << 26
