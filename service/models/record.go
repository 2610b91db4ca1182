/*
 * @module service/models/record
 * @description 外部接口返回的扁平记录：字段名 -> 字符串值
 * @architecture 领域模型 - 值对象
 * @stateFlow 接口响应解析 -> Record -> 领域记录
 * @rules Record 只读传递，不在阶段之间修改
 * @dependencies strings
 * @refs service/datasource, service/collector, service/aggregator
 */

package models

import (
	"sort"
	"strings"
)

// Record 页面/明细接口返回的单条记录
type Record map[string]string

// Get 读取字段值，去除首尾空白
func (r Record) Get(field string) string {
	return strings.TrimSpace(r[field])
}

// Optional 读取可空字段，空值返回nil
func (r Record) Optional(field string) *string {
	v := r.Get(field)
	if v == "" {
		return nil
	}
	return &v
}

// Keys 返回排序后的字段名
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone 复制记录
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
