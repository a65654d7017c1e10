package errors

import (
	"errors"
	"fmt"
)

// Kind 错误分类
type Kind string

const (
	KindValidation Kind = "validation"       // 输入不合法、日期越界、缺少角色必需字段
	KindNotFound   Kind = "not_found"        // 人员 / 图书 / 借阅单 / 借阅项 / 学期不存在
	KindPolicy     Kind = "policy_violation" // 库存、借阅上限、续借上限、终态不可操作
	KindConflict   Kind = "conflict"         // 并发修改冲突
	KindStorage    Kind = "storage"          // 底层事务 / 存储失败
)

// Error 业务错误
//
// 同一 Kind 下 Msg 区分具体原因；Msg 为空的哨兵值可用于按分类匹配：
//
//	errors.Is(err, apperrors.ErrPolicy)       // 任意策略违规
//	errors.Is(err, circulation.ErrOutOfStock) // 具体原因
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg == "" {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Msg == "" {
		return string(e.Kind)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is 同 Kind 且 (目标 Msg 为空 或 Msg 相同) 即视为匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// ── 分类哨兵 ──

var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrPolicy     = &Error{Kind: KindPolicy}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrStorage    = &Error{Kind: KindStorage}
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = &Error{Kind: KindConflict, Msg: "数据已被其他操作修改，请刷新后重试"}

// ── 构造函数 ──

// Validation 输入校验失败
func Validation(msg string) *Error { return &Error{Kind: KindValidation, Msg: msg} }

// NotFound 资源不存在
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Msg: msg} }

// Policy 借阅策略违规
func Policy(msg string) *Error { return &Error{Kind: KindPolicy, Msg: msg} }

// Storage 包装底层存储错误；已是业务错误的原样返回
func Storage(err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{Kind: KindStorage, Msg: "存储操作失败", Err: err}
}

// KindOf 返回错误分类，非业务错误视为存储错误
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorage
}
