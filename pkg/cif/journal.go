package cif

import "github.com/google/uuid"

type journalOp uint8

const (
	opSet journalOp = iota
	opInsert
	opUnlink
)

type journalEntry struct {
	op     journalOp
	cat    *Category
	idx    int32
	column int
	text   string
	prev   int32
}

// journal records the mutations made by one cascading operation so they
// can be undone as a unit. Operations nest; only the outermost end commits
// or rolls back.
type journal struct {
	depth   int
	op      string
	entries []journalEntry
}

func newJournal() *journal {
	return &journal{}
}

func (j *journal) begin() {
	if j.depth == 0 {
		j.op = uuid.NewString()
	}
	j.depth++
}

// end closes one level. At the outermost level the journal commits when
// err is nil and rolls back otherwise. err is returned unchanged.
func (j *journal) end(err error) error {
	j.depth--
	if j.depth > 0 {
		return err
	}
	if err != nil {
		j.rollback()
	} else {
		j.commit()
	}
	return err
}

func (j *journal) active() bool { return j.depth > 0 }

func (j *journal) recordSet(c *Category, idx int32, column int, old string) {
	if j.active() {
		j.entries = append(j.entries, journalEntry{op: opSet, cat: c, idx: idx, column: column, text: old})
	}
}

func (j *journal) recordInsert(c *Category, idx int32) {
	if j.active() {
		j.entries = append(j.entries, journalEntry{op: opInsert, cat: c, idx: idx})
	}
}

// recordUnlink records an unlinked row. Without an active journal the row
// is released immediately.
func (j *journal) recordUnlink(c *Category, idx, prev int32) {
	if j.active() {
		j.entries = append(j.entries, journalEntry{op: opUnlink, cat: c, idx: idx, prev: prev})
		return
	}
	c.release(idx)
}

func (j *journal) commit() {
	for _, e := range j.entries {
		if e.op == opUnlink {
			e.cat.release(e.idx)
		}
	}
	j.entries = j.entries[:0]
}

func (j *journal) rollback() {
	touched := make(map[*Category]bool)
	for i := len(j.entries) - 1; i >= 0; i-- {
		e := j.entries[i]
		touched[e.cat] = true
		switch e.op {
		case opSet:
			_ = e.cat.rows[e.idx].put(uint16(e.column), e.text)
		case opInsert:
			e.cat.unlinkChain(e.idx)
			e.cat.release(e.idx)
		case opUnlink:
			e.cat.linkAfter(e.idx, e.prev)
		}
	}
	for c := range touched {
		if c.index != nil {
			_ = c.index.rebuild()
		}
	}
	if len(j.entries) > 0 {
		first := j.entries[0].cat
		if first.opts.verbosity > 0 {
			first.opts.logger.Warn("journal: rolled back", "op", j.op, "entries", len(j.entries))
		}
	}
	j.entries = j.entries[:0]
}
