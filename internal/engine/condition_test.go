package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fulingwei1/non-standard-automation-pms-sub015/internal/engine"
)

// TestCondition_Eval 叶子比较求值
func TestCondition_Eval(t *testing.T) {
	form := map[string]interface{}{
		"amount":   float64(5000),
		"category": "purchase",
		"tags":     []interface{}{"urgent", "hardware"},
		"applicant": map[string]interface{}{
			"dept": "mfg",
		},
	}

	tests := []struct {
		name string
		cond *engine.Condition
		want bool
	}{
		{"eq 命中", &engine.Condition{Field: "category", Op: engine.OpEq, Value: "purchase"}, true},
		{"eq 未命中", &engine.Condition{Field: "category", Op: engine.OpEq, Value: "contract"}, false},
		{"ne", &engine.Condition{Field: "category", Op: engine.OpNe, Value: "contract"}, true},
		{"gt 命中", &engine.Condition{Field: "amount", Op: engine.OpGt, Value: 1000}, true},
		{"gt 边界不含", &engine.Condition{Field: "amount", Op: engine.OpGt, Value: 5000}, false},
		{"gte 边界含", &engine.Condition{Field: "amount", Op: engine.OpGte, Value: 5000}, true},
		{"lt", &engine.Condition{Field: "amount", Op: engine.OpLt, Value: 10000}, true},
		{"lte", &engine.Condition{Field: "amount", Op: engine.OpLte, Value: 4999}, false},
		{"in 命中", &engine.Condition{Field: "category", Op: engine.OpIn, Value: []interface{}{"contract", "purchase"}}, true},
		{"in 未命中", &engine.Condition{Field: "category", Op: engine.OpIn, Value: []interface{}{"ecn"}}, false},
		{"contains 字符串", &engine.Condition{Field: "category", Op: engine.OpContains, Value: "chase"}, true},
		{"contains 数组", &engine.Condition{Field: "tags", Op: engine.OpContains, Value: "urgent"}, true},
		{"contains 数组未命中", &engine.Condition{Field: "tags", Op: engine.OpContains, Value: "software"}, false},
		{"嵌套路径", &engine.Condition{Field: "applicant.dept", Op: engine.OpEq, Value: "mfg"}, true},
		{"nil 条件恒真", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Eval(form))
		})
	}
}

// TestCondition_Eval_MissingField 字段缺失按比较失败处理,ne 例外
func TestCondition_Eval_MissingField(t *testing.T) {
	form := map[string]interface{}{"amount": 1}

	assert.False(t, (&engine.Condition{Field: "missing", Op: engine.OpEq, Value: 1}).Eval(form))
	assert.False(t, (&engine.Condition{Field: "missing", Op: engine.OpGt, Value: 0}).Eval(form))
	assert.True(t, (&engine.Condition{Field: "missing", Op: engine.OpNe, Value: 1}).Eval(form))
	assert.False(t, (&engine.Condition{Field: "amount.deep", Op: engine.OpEq, Value: 1}).Eval(form))
}

// TestCondition_Eval_NumericNormalization 不同数值类型归一后比较
func TestCondition_Eval_NumericNormalization(t *testing.T) {
	// JSON 反序列化得到 float64,规则里写 int 也要能比
	form := map[string]interface{}{"qty": float64(3)}
	assert.True(t, (&engine.Condition{Field: "qty", Op: engine.OpEq, Value: 3}).Eval(form))
	assert.True(t, (&engine.Condition{Field: "qty", Op: engine.OpLte, Value: int64(3)}).Eval(form))

	// 数值和非数值之间不相等
	assert.False(t, (&engine.Condition{Field: "qty", Op: engine.OpEq, Value: "3"}).Eval(form))
}

// TestCondition_Eval_Combinators 布尔组合
func TestCondition_Eval_Combinators(t *testing.T) {
	form := map[string]interface{}{"amount": float64(8000), "category": "purchase"}

	all := &engine.Condition{All: []*engine.Condition{
		{Field: "amount", Op: engine.OpGt, Value: 5000},
		{Field: "category", Op: engine.OpEq, Value: "purchase"},
	}}
	assert.True(t, all.Eval(form))

	any := &engine.Condition{Any: []*engine.Condition{
		{Field: "amount", Op: engine.OpGt, Value: 100000},
		{Field: "category", Op: engine.OpEq, Value: "purchase"},
	}}
	assert.True(t, any.Eval(form))

	not := &engine.Condition{Not: &engine.Condition{Field: "category", Op: engine.OpEq, Value: "contract"}}
	assert.True(t, not.Eval(form))

	nested := &engine.Condition{All: []*engine.Condition{
		{Any: []*engine.Condition{
			{Field: "amount", Op: engine.OpGt, Value: 100000},
			{Field: "amount", Op: engine.OpGt, Value: 5000},
		}},
		{Not: &engine.Condition{Field: "category", Op: engine.OpEq, Value: "ecn"}},
	}}
	assert.True(t, nested.Eval(form))
}

// TestCondition_Validate 条件结构校验
func TestCondition_Validate(t *testing.T) {
	assert.NoError(t, (&engine.Condition{Field: "amount", Op: engine.OpGt, Value: 1}).Validate())
	assert.NoError(t, (*engine.Condition)(nil).Validate())
	assert.NoError(t, (&engine.Condition{All: []*engine.Condition{
		{Field: "a", Op: engine.OpEq, Value: 1},
	}}).Validate())

	// 缺字段
	err := (&engine.Condition{Op: engine.OpEq}).Validate()
	assert.ErrorIs(t, err, engine.ErrValidation)

	// 未知操作符
	err = (&engine.Condition{Field: "a", Op: "regex"}).Validate()
	assert.ErrorIs(t, err, engine.ErrValidation)

	// 组合器不能混用
	err = (&engine.Condition{
		All: []*engine.Condition{{Field: "a", Op: engine.OpEq, Value: 1}},
		Not: &engine.Condition{Field: "b", Op: engine.OpEq, Value: 2},
	}).Validate()
	assert.ErrorIs(t, err, engine.ErrValidation)

	// 组合器不能同时带字段比较
	err = (&engine.Condition{
		Field: "a", Op: engine.OpEq,
		Any: []*engine.Condition{{Field: "b", Op: engine.OpEq, Value: 1}},
	}).Validate()
	assert.ErrorIs(t, err, engine.ErrValidation)

	// 子条件校验递归
	err = (&engine.Condition{Any: []*engine.Condition{{Op: engine.OpEq}}}).Validate()
	assert.ErrorIs(t, err, engine.ErrValidation)
}

// TestCondition_Eval_NonComparableValues 表单字段可能是对象或数组
// form_data 由终端用户提交,比较非标量值不得 panic,一律按不相等处理。
func TestCondition_Eval_NonComparableValues(t *testing.T) {
	form := map[string]interface{}{
		"amount": map[string]interface{}{"x": float64(1)},
		"tags":   []interface{}{"a", "b"},
	}

	assert.NotPanics(t, func() {
		eq := &engine.Condition{Field: "amount", Op: engine.OpEq, Value: map[string]interface{}{"x": float64(1)}}
		assert.False(t, eq.Eval(form))

		ne := &engine.Condition{Field: "amount", Op: engine.OpNe, Value: map[string]interface{}{"x": float64(1)}}
		assert.True(t, ne.Eval(form))

		in := &engine.Condition{Field: "tags", Op: engine.OpIn, Value: []interface{}{[]interface{}{"a", "b"}}}
		assert.False(t, in.Eval(form))

		contains := &engine.Condition{Field: "tags", Op: engine.OpContains, Value: map[string]interface{}{}}
		assert.False(t, contains.Eval(form))

		// 规则侧的值是对象、表单侧是标量同样不炸
		mixed := &engine.Condition{Field: "tags", Op: engine.OpEq, Value: "a"}
		assert.False(t, mixed.Eval(form))
	})
}
