// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package storage provides the storage abstraction layer for docqa.
//
// This package defines the interfaces that decouple storage implementations
// from business logic:
//
//   - BlobStore: durable, key-addressable file storage (storage gateway)
//   - DocumentRepository: the retrieval index of embedded documents
//   - ConversationRepository: append-only conversation message logs
//
// Public constructors in implementation packages return these interfaces to
// enforce abstraction and keep backends swappable. Internal constructors may
// return concrete types.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access from
// multiple goroutines. Each single-key write (one file, one indexed document,
// one appended message) is atomic; nothing stronger is assumed.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout support.
package storage
