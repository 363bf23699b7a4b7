// Package main is the cgo FFI boundary: the one place a process-wide
// global and C exports are acceptable (spec's "Cyclic references"/"DLL
// boundary" redesign notes call this out explicitly as the exception).
// Every other package in this module exposes plain Go calls instead.
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/steosofficial/mecabkit"
	"github.com/steosofficial/mecabkit/config"
	"github.com/steosofficial/mecabkit/model"
)

// currentModel is the process-wide handle the C side operates on,
// mirroring the teacher's single package-level *MorphAnalyzer — the
// original tool never exposed more than one live analyzer per process
// either.
var currentModel *model.Model

// CreateModel opens a Model from dicdir (a directory holding sys.dic,
// unk.dic, char.bin and matrix.bin) and stores it as the process's
// current model. dicdir may be NULL, in which case config resolution
// falls back to MECABRC / $HOME/.mecabrc.
//
//export CreateModel
func CreateModel(dicdir *C.char) C.int {
	var dir string
	if dicdir != nil {
		dir = C.GoString(dicdir)
	}
	m, err := mecabkit.Open(config.Options{DictionaryDir: dir})
	if err != nil {
		return -1
	}
	currentModel = m
	return 0
}

// ParseSentence runs a 1-best analysis of sentence against the current
// model and returns the default surface/feature rendering as a newly
// allocated C string; the caller must release it with FreeString.
//
//export ParseSentence
func ParseSentence(sentence *C.char) *C.char {
	if currentModel == nil || sentence == nil {
		return nil
	}
	out, err := mecabkit.Parse(currentModel, C.GoString(sentence))
	if err != nil {
		return nil
	}
	return C.CString(out)
}

// FreeString releases a C string previously returned by ParseSentence.
//
//export FreeString
func FreeString(str *C.char) {
	if str != nil {
		C.free(unsafe.Pointer(str))
	}
}

// ReleaseModel drops the process's reference to the current model,
// closing its memory-mapped dictionaries.
//
//export ReleaseModel
func ReleaseModel() {
	if currentModel != nil {
		currentModel.Close()
		currentModel = nil
	}
}

func main() {}
