package network

// Table is the indexed collection of slaves discovered on the bus. It
// is built once during network initialization and consulted, and
// partially re-populated, by every unit that runs afterward.
type Table struct {
	slaves []*Slave
}

func NewTable() *Table {
	return &Table{}
}

// Add appends a newly discovered slave and returns its index.
func (t *Table) Add(s *Slave) int {
	t.slaves = append(t.slaves, s)
	return len(t.slaves) - 1
}

func (t *Table) Len() int { return len(t.slaves) }

func (t *Table) Get(index int) *Slave {
	if index < 0 || index >= len(t.slaves) {
		return nil
	}
	return t.slaves[index]
}

// Pair returns both the slave at index and the slave at peerIndex
// without aliasing a single Slave through two paths: callers that need
// to read a parent while mutating a child (DC propagation, delay
// computation) take both indices and operate through this pair instead
// of holding overlapping references.
func (t *Table) Pair(index, peerIndex int) (self, peer *Slave) {
	return t.Get(index), t.Get(peerIndex)
}

func (t *Table) All() []*Slave {
	return t.slaves
}
