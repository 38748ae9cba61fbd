package types

type RenameMode string

const (
	ModeUnset  RenameMode = ""
	ModeManual RenameMode = "manual"
	ModeAuto   RenameMode = "auto"
)

const (
	DefaultFileName  = "file.mkv"
	DefaultExtension = ".mkv"
)
