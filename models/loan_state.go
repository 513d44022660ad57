package models

import "fmt"

// LoanState представляет состояние займа
type LoanState string

const (
	LoanStatePending         LoanState = "pending"          // Ожидает решения администратора
	LoanStateRejected        LoanState = "rejected"         // Отклонен администратором
	LoanStateCancelled       LoanState = "cancelled"        // Отменен пользователем
	LoanStateActive          LoanState = "active"           // Книга выдана
	LoanStateReturnRequested LoanState = "return_requested" // Пользователь выбрал дату возврата
	LoanStateReturned        LoanState = "returned"         // Возврат завершен
	LoanStateOverdue         LoanState = "overdue"          // Выдан и просрочен
)

// OpenLoanStates состояния, в которых у пары (пользователь, книга) может быть только один займ
var OpenLoanStates = []LoanState{
	LoanStatePending,
	LoanStateActive,
	LoanStateReturnRequested,
	LoanStateOverdue,
}

// IsOpen сообщает, занимает ли займ слот пары (пользователь, книга)
func (s LoanState) IsOpen() bool {
	for _, open := range OpenLoanStates {
		if s == open {
			return true
		}
	}
	return false
}

// LoanAction представляет событие жизненного цикла займа
type LoanAction string

const (
	LoanActionRequest        LoanAction = "request" // Создание заявки, не переход
	LoanActionApprove        LoanAction = "approve"
	LoanActionReject         LoanAction = "reject"
	LoanActionCancel         LoanAction = "cancel"
	LoanActionRequestReturn  LoanAction = "request_return"
	LoanActionApproveReturn  LoanAction = "approve_return"
	LoanActionFinalizeReturn LoanAction = "finalize_return" // Автозавершение сверкой
	LoanActionMarkOverdue    LoanAction = "mark_overdue"
)

var loanTransitions = map[LoanState]map[LoanAction]LoanState{
	LoanStatePending: {
		LoanActionApprove: LoanStateActive,
		LoanActionReject:  LoanStateRejected,
		LoanActionCancel:  LoanStateCancelled,
	},
	LoanStateActive: {
		LoanActionRequestReturn: LoanStateReturnRequested,
		LoanActionMarkOverdue:   LoanStateOverdue,
	},
	LoanStateOverdue: {
		LoanActionRequestReturn: LoanStateReturnRequested,
	},
	LoanStateReturnRequested: {
		LoanActionApproveReturn:  LoanStateReturned,
		LoanActionFinalizeReturn: LoanStateReturned,
	},
}

// NextState возвращает состояние после события или ErrWrongState
func NextState(from LoanState, action LoanAction) (LoanState, error) {
	if to, ok := loanTransitions[from][action]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s из состояния %s", ErrWrongState, action, from)
}
