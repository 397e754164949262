package model

// FileFilter selects (Item, FileRecord) pairs out of a manifest. Empty sets
// match everything; ItemID, when set, restricts the selection to one item.
type FileFilter struct {
	OSes      []string
	Languages []string
	Kinds     []FileKind
	ItemID    string
}

// MatchItem checks if the filter's item constraint admits the given item.
func (f FileFilter) MatchItem(item *Item) bool {
	return f.ItemID == "" || f.ItemID == item.ID
}

// MatchFile checks if the given file satisfies the OS, language and kind
// constraints.
func (f FileFilter) MatchFile(file *FileRecord) bool {
	return file.MatchOS(f.OSes) && file.MatchLanguage(f.Languages) && file.MatchKind(f.Kinds)
}
