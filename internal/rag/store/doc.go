// Package store 提供 docqa 的数据存储层。
//
// VectorIndex 定义分块向量的写入、检索、删除与统计，
// 提供进程内实现和基于 Milvus 的实现；DocumentRepository 使用 GORM
// 持久化文档元数据与入库状态。
package store
