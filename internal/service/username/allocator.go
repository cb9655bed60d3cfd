package username

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/rs/zerolog/log"

	"accountguard/internal/pkg/apperr"
	"accountguard/internal/pkg/clock"
	"accountguard/internal/pkg/metrics"
	"accountguard/internal/pkg/validate"
)

// 时间戳兜底取毫秒时间戳的最后 6 位
const timestampDigits = 6

// suggestRounds 建议生成时最多重复策略的轮数
const suggestRounds = 5

// ReserveFunc 原子占用用户名（通常是带唯一索引的插入）
// 用户名已被占用时必须返回 Code 为 username_taken 的错误
type ReserveFunc func(ctx context.Context, username string) error

// Availability 只读的用户名占用查询，仅用于生成建议
type Availability interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// Allocator 用户名分配器
type Allocator struct {
	names Availability
	clock clock.Clock
	rnd   *randSource
}

// AllocatorOption 分配器选项
type AllocatorOption func(*Allocator)

// WithSeed 固定随机种子（测试用）
func WithSeed(seed uint64) AllocatorOption {
	return func(a *Allocator) {
		a.rnd = newRandSource(seed)
	}
}

// NewAllocator 创建分配器
func NewAllocator(names Availability, clk clock.Clock, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		names: names,
		clock: clk,
		rnd:   newRandSource(rand.Uint64()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate 为资料分配用户名
// 不做预先的存在性查询：每个候选直接交给 reserve，唯一冲突则换下一个候选，
// 其他错误立即返回。所有策略耗尽后用时间戳形式做最后一次占用，仍冲突则返回 Conflict。
func (a *Allocator) Allocate(ctx context.Context, p Profile, provider string, reserve ReserveFunc) (string, error) {
	if p.Empty() {
		return "", ErrInvalidProfile
	}

	base := Sanitize(BaseFor(p, provider))
	tried := make(map[string]bool)

	attempt := func(name, strategy string) (bool, error) {
		if tried[name] || IsReserved(name) {
			return false, nil
		}
		tried[name] = true

		err := reserve(ctx, name)
		switch {
		case err == nil:
			metrics.UsernameAllocated(strategy)
			return true, nil
		case apperr.CodeOf(err) == apperr.CodeUsernameTaken:
			metrics.UsernameConflict()
			return false, nil
		default:
			return false, err
		}
	}

	ok, err := attempt(base, "base")
	if err != nil {
		return "", err
	}
	if ok {
		return base, nil
	}

	for _, st := range strategies {
		for _, name := range st.generate(base, a.rnd) {
			ok, err := attempt(name, st.name)
			if err != nil {
				return "", err
			}
			if ok {
				log.Debug().Str("strategy", st.name).Str("username", name).Msg("username allocated after conflict")
				return name, nil
			}
		}
	}

	name := timestampName(base, a.clock.Now().UnixMilli())
	if err := reserve(ctx, name); err != nil {
		if apperr.CodeOf(err) == apperr.CodeUsernameTaken {
			log.Warn().Str("base", base).Msg("username allocation exhausted all candidates")
			return "", apperr.Wrap(err, apperr.KindConflict, apperr.CodeUsernameTaken, "no available username could be allocated")
		}
		return "", err
	}
	metrics.UsernameAllocated("timestamp")
	return name, nil
}

// Suggest 生成 count 个互不相同、当前可用、且不等于 current 的用户名
func (a *Allocator) Suggest(ctx context.Context, p Profile, provider string, count int, current string) ([]string, error) {
	if p.Empty() {
		return nil, ErrInvalidProfile
	}
	return a.SuggestFrom(ctx, BaseFor(p, provider), count, current)
}

// SuggestFrom 以给定字符串为基础生成建议
func (a *Allocator) SuggestFrom(ctx context.Context, raw string, count int, current string) ([]string, error) {
	base := Sanitize(raw)
	seen := map[string]bool{strings.ToLower(current): true}
	out := make([]string, 0, count)

	add := func(name string) error {
		if len(out) >= count || seen[name] || IsReserved(name) || !validate.Username(name) {
			return nil
		}
		seen[name] = true
		exists, err := a.names.UsernameExists(ctx, name)
		if err != nil {
			return err
		}
		if !exists {
			out = append(out, name)
		}
		return nil
	}

	if err := add(base); err != nil {
		return nil, err
	}
	for round := 0; round < suggestRounds && len(out) < count; round++ {
		for _, st := range strategies {
			for _, name := range st.generate(base, a.rnd) {
				if err := add(name); err != nil {
					return nil, err
				}
			}
		}
	}

	ts := a.clock.Now().UnixMilli()
	for i := int64(0); len(out) < count && i < int64(count)*10; i++ {
		if err := add(timestampName(base, ts+i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// timestampName base[0:20-len(ts)] + 毫秒时间戳最后 6 位
func timestampName(base string, millis int64) string {
	ts := fmt.Sprintf("%0*d", timestampDigits, millis%1_000_000)
	return fit(base, ts)
}
