package enums

// ModuleContentType tracks what a module holds. A module may contain
// submodules or lessons, never both.
type ModuleContentType string

const (
	ModuleContentEmpty   ModuleContentType = "empty"
	ModuleContentModules ModuleContentType = "modules"
	ModuleContentLessons ModuleContentType = "lessons"
)
