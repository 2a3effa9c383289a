// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// pymarshalNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	pymarshalNamespace = "pymarshal"

	codecSubsystem = "codec"

	// 以下为当前使用的通用标签名。
	opLabelName     = "op"
	resultLabelName = "result"
	kindLabelName   = "kind"

	OpEncode = "encode"
	OpDecode = "decode"

	OpFrameWrite = "frame_write"
	OpFrameRead  = "frame_read"

	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	// sizeBuckets 为编码数据大小的桶划分，单位为字节。
	// 实际桶分布为：[16 64 256 1024 4096 ... 6.7108864e+07]
	sizeBuckets = prometheus.ExponentialBuckets(16, 4, 12)

	CodecOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: pymarshalNamespace,
			Subsystem: codecSubsystem,
			Name:      "operations_total",
			Help:      "编解码调用次数",
		}, []string{opLabelName, resultLabelName})

	CodecBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: pymarshalNamespace,
			Subsystem: codecSubsystem,
			Name:      "bytes",
			Help:      "单次编解码处理的字节数",
			Buckets:   sizeBuckets,
		}, []string{opLabelName})

	CodecErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: pymarshalNamespace,
			Subsystem: codecSubsystem,
			Name:      "errors_total",
			Help:      "按错误类别统计的编解码失败次数",
		}, []string{opLabelName, kindLabelName})

	CodecReferences = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: pymarshalNamespace,
			Subsystem: codecSubsystem,
			Name:      "references_total",
			Help:      "写出或解析的回引用记录数",
		}, []string{opLabelName})

	registerOnce     sync.Once
	metricRegisterer prometheus.Registerer
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标，重复调用只生效一次。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(CodecOperations)
		r.MustRegister(CodecBytes)
		r.MustRegister(CodecErrors)
		r.MustRegister(CodecReferences)
		metricRegisterer = r
	})
}

// ObserveCodec 记录一次编解码调用的结果。
// kind 为错误类别，成功时为空串。
func ObserveCodec(op string, size int, refs int, kind string, err error) {
	if err != nil {
		CodecOperations.WithLabelValues(op, ResultFailure).Inc()
		if kind == "" {
			kind = "unknown"
		}
		CodecErrors.WithLabelValues(op, kind).Inc()
		return
	}
	CodecOperations.WithLabelValues(op, ResultSuccess).Inc()
	CodecBytes.WithLabelValues(op).Observe(float64(size))
	if refs > 0 {
		CodecReferences.WithLabelValues(op).Add(float64(refs))
	}
}
