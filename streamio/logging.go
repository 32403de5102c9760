// Copyright 2018 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package streamio

import logging "github.com/op/go-logging"

// logger is the subset of *logging.Logger the package uses, so tests
// can swap in a no-op implementation without linking go-logging's
// backend machinery.
type logger interface {
	Debugf(format string, args ...interface{})
	Warningf(format string, args ...interface{})
}

var pkgLogger logger = logging.MustGetLogger("streamio")
