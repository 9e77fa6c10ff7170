package enums

// LessonBlockType says how a block's content string is read: inline text,
// an external URL, or an object key in the media bucket.
type LessonBlockType string

const (
	LessonBlockText  LessonBlockType = "text"
	LessonBlockVideo LessonBlockType = "video"
	LessonBlockAudio LessonBlockType = "audio"
	LessonBlockImage LessonBlockType = "image"
	LessonBlockPDF   LessonBlockType = "pdf"
	LessonBlockLink  LessonBlockType = "link"
	LessonBlockQuiz  LessonBlockType = "quiz"
)

func (t LessonBlockType) Valid() bool {
	switch t {
	case LessonBlockText, LessonBlockVideo, LessonBlockAudio,
		LessonBlockImage, LessonBlockPDF, LessonBlockLink, LessonBlockQuiz:
		return true
	default:
		return false
	}
}

// FileBacked blocks store an object key from the media bucket.
func (t LessonBlockType) FileBacked() bool {
	switch t {
	case LessonBlockVideo, LessonBlockAudio, LessonBlockImage, LessonBlockPDF:
		return true
	default:
		return false
	}
}

// URLBacked blocks store an external link.
func (t LessonBlockType) URLBacked() bool {
	return t == LessonBlockLink || t == LessonBlockQuiz
}
