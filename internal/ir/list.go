package ir

// ListBlock represents a list (ordered or unordered) in the document.
type ListBlock struct {
	Ordered bool       `json:"ordered"` // true = numbered list, false = bullet list
	Items   []ListItem `json:"items"`
	Start   int        `json:"start,omitempty"` // starting number for ordered lists
}

// ListItem is one entry of a list. Nested lists appear as List blocks
// inside Blocks.
type ListItem struct {
	Blocks []Block `json:"blocks"`
}

// NewList creates a new list block.
func NewList(ordered bool) *ListBlock {
	return &ListBlock{
		Ordered: ordered,
		Items:   make([]ListItem, 0),
		Start:   1,
	}
}

// NewOrderedList creates a new ordered (numbered) list.
func NewOrderedList() *ListBlock {
	return NewList(true)
}

// NewUnorderedList creates a new unordered (bullet) list.
func NewUnorderedList() *ListBlock {
	return NewList(false)
}

// AddItem adds a single-paragraph item to the list.
func (l *ListBlock) AddItem(text string) {
	l.AddItemBlocks(NewParagraph(text).Block())
}

// AddItemBlocks adds an item made of arbitrary blocks.
func (l *ListBlock) AddItemBlocks(blocks ...Block) {
	l.Items = append(l.Items, ListItem{Blocks: blocks})
}

// AddSublist nests a list under the last item. It starts a new item when
// the list is empty.
func (l *ListBlock) AddSublist(sub *ListBlock) {
	if len(l.Items) == 0 {
		l.AddItemBlocks(sub.Block())
		return
	}
	last := &l.Items[len(l.Items)-1]
	last.Blocks = append(last.Blocks, sub.Block())
}

// IsEmpty returns true if the list has no items.
func (l *ListBlock) IsEmpty() bool {
	return len(l.Items) == 0
}

// Block wraps the list in a Block.
func (l *ListBlock) Block() Block {
	return Block{Type: BlockTypeList, List: l}
}

func (l *ListBlock) allBlocks() []Block {
	var out []Block
	for _, it := range l.Items {
		out = append(out, it.Blocks...)
	}
	return out
}
