package session

// Modal identifies the dialog currently shown over the canvas.
type Modal int

const (
	ModalNone Modal = iota
	ModalCategory
	ModalAnnotation
	ModalSettings
	ModalCopy
)

func (m Modal) String() string {
	switch m {
	case ModalNone:
		return "none"
	case ModalCategory:
		return "category"
	case ModalAnnotation:
		return "annotation"
	case ModalSettings:
		return "settings"
	case ModalCopy:
		return "copy"
	default:
		return "unknown"
	}
}

// OpenModal records that a dialog is shown. Only one dialog may be open.
func (s *Session) OpenModal(m Modal) error {
	if m == ModalNone {
		s.CloseModal()
		return nil
	}
	if s.modal != ModalNone {
		return ErrModalOpen
	}
	s.modal = m
	s.Emit(EventModalChanged, m)
	return nil
}

// CloseModal records that the open dialog was dismissed.
func (s *Session) CloseModal() {
	if s.modal == ModalNone {
		return
	}
	s.modal = ModalNone
	s.Emit(EventModalChanged, ModalNone)
}

// Modal returns the open dialog.
func (s *Session) Modal() Modal { return s.modal }
