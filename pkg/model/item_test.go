package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileRecordMatching(t *testing.T) {
	installer := &FileRecord{Name: "setup.exe", Kind: FileKindInstaller, OS: "windows", Language: "en"}
	extra := &FileRecord{Name: "soundtrack.zip", Kind: FileKindExtra}

	tests := []struct {
		name  string
		file  *FileRecord
		oses  []string
		langs []string
		kinds []FileKind
		want  bool
	}{
		{"empty filter matches installer", installer, nil, nil, nil, true},
		{"matching os and lang", installer, []string{"windows"}, []string{"en"}, nil, true},
		{"wrong os", installer, []string{"linux"}, []string{"en"}, nil, false},
		{"wrong lang", installer, []string{"windows"}, []string{"fr"}, nil, false},
		{"untagged extra matches any os and lang", extra, []string{"linux"}, []string{"fr"}, nil, true},
		{"kind filter admits", installer, nil, nil, []FileKind{FileKindInstaller, FileKindPatch}, true},
		{"kind filter rejects", extra, nil, nil, []FileKind{FileKindInstaller}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := FileFilter{OSes: tt.oses, Languages: tt.langs, Kinds: tt.kinds}
			assert.Equal(t, tt.want, filter.MatchFile(tt.file))
		})
	}
}

func TestFileFilterMatchItem(t *testing.T) {
	item := &Item{ID: "beneath-a-steel-sky"}

	assert.True(t, FileFilter{}.MatchItem(item))
	assert.True(t, FileFilter{ItemID: "beneath-a-steel-sky"}.MatchItem(item))
	assert.False(t, FileFilter{ItemID: "other"}.MatchItem(item))
}

func TestItemFindFile(t *testing.T) {
	item := &Item{
		ID: "sample",
		Files: []*FileRecord{
			{Name: "setup.exe"},
			{Name: "manual.pdf"},
		},
	}

	assert.NotNil(t, item.FindFile("manual.pdf"))
	assert.Nil(t, item.FindFile("missing.bin"))
}

func TestTaskStateTerminal(t *testing.T) {
	assert.False(t, TaskPending.Terminal())
	assert.False(t, TaskInProgress.Terminal())
	assert.True(t, TaskCompleted.Terminal())
	assert.True(t, TaskFailedFatal.Terminal())
	assert.True(t, TaskSkipped.Terminal())
}

func TestVerificationRecord(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		r := VerificationRecord{Results: map[CheckKind]bool{CheckChecksum: true, CheckSize: true}}
		assert.True(t, r.Passed())
		assert.False(t, r.Failed())
	})

	t.Run("one check fails", func(t *testing.T) {
		r := VerificationRecord{Results: map[CheckKind]bool{CheckChecksum: false, CheckSize: true}}
		assert.False(t, r.Passed())
		assert.True(t, r.Failed())
	})

	t.Run("missing is neither passed nor failed", func(t *testing.T) {
		r := VerificationRecord{Missing: true}
		assert.False(t, r.Passed())
		assert.False(t, r.Failed())
	})
}
