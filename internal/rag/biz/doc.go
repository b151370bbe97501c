// Package biz 提供文档问答服务的业务逻辑层。
//
// 入库流水线：Parser 抽取带定位信息的文本段，Chunker 按字符窗口切分，
// Embedder 分批向量化，结果写入 store.VectorIndex。
// 问答流水线：Retriever 检索相关分块，Assembler 在 token 预算内组装带引用的上下文，
// Generator 调用 Chat 供应商生成答案。Service 组合以上组件并维护文档状态。
package biz
