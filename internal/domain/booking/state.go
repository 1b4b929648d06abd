package booking

// State implements the state pattern for the collection lifecycle.
//
//	pending   --confirm--> confirmed
//	pending   --collect--> collected
//	confirmed --collect--> collected
//	pending   --expire---> expired
//	confirmed --expire---> expired
type State interface {
	Status() Status
	OnConfirm() (State, error)
	OnCollect() (State, error)
	OnExpire() (State, error)
}

func stateFor(s Status) State {
	switch s {
	case StatusConfirmed:
		return confirmedState{}
	case StatusCollected:
		return collectedState{}
	case StatusExpired:
		return expiredState{}
	default:
		return pendingState{}
	}
}

type pendingState struct{}

func (pendingState) Status() Status            { return StatusPending }
func (pendingState) OnConfirm() (State, error) { return confirmedState{}, nil }
func (pendingState) OnCollect() (State, error) { return collectedState{}, nil }
func (pendingState) OnExpire() (State, error)  { return expiredState{}, nil }

type confirmedState struct{}

func (confirmedState) Status() Status            { return StatusConfirmed }
func (confirmedState) OnConfirm() (State, error) { return nil, ErrInvalidStateTransition }
func (confirmedState) OnCollect() (State, error) { return collectedState{}, nil }
func (confirmedState) OnExpire() (State, error)  { return expiredState{}, nil }

type collectedState struct{}

func (collectedState) Status() Status            { return StatusCollected }
func (collectedState) OnConfirm() (State, error) { return nil, ErrInvalidStateTransition }
func (collectedState) OnCollect() (State, error) { return nil, ErrInvalidStateTransition }
func (collectedState) OnExpire() (State, error)  { return nil, ErrInvalidStateTransition }

type expiredState struct{}

func (expiredState) Status() Status            { return StatusExpired }
func (expiredState) OnConfirm() (State, error) { return nil, ErrInvalidStateTransition }
func (expiredState) OnCollect() (State, error) { return nil, ErrInvalidStateTransition }
func (expiredState) OnExpire() (State, error)  { return nil, ErrInvalidStateTransition }
