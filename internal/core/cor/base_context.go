// Copyright 2024 Google, LLC
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

package cor

import (
	"context"
	"errors"
)

// BaseContext is the default implementation of the Context interface. It is
// not safe for concurrent use; a chain runs its commands one after another.
type BaseContext struct {
	data      map[string]interface{} // Arbitrary key-value data shared by the commands.
	errors    map[string]error       // Errors keyed by the name of the command that produced them.
	errOrder  []string               // Command names in the order their errors were recorded.
	goContext context.Context        // Cancellation, deadlines and span propagation.
}

// NewBaseContext creates an empty context. Callers must SetContext before
// executing a chain with it.
func NewBaseContext() Context {
	return &BaseContext{
		data:   make(map[string]interface{}),
		errors: make(map[string]error),
	}
}

func (c *BaseContext) SetContext(ctx context.Context) {
	c.goContext = ctx
}

func (c *BaseContext) GetContext() context.Context {
	return c.goContext
}

func (c *BaseContext) Add(key string, value interface{}) Context {
	c.data[key] = value
	return c
}

func (c *BaseContext) Get(key string) interface{} {
	return c.data[key]
}

func (c *BaseContext) Remove(key string) {
	delete(c.data, key)
}

func (c *BaseContext) AddError(key string, err error) {
	if err == nil {
		return
	}
	if _, ok := c.errors[key]; !ok {
		c.errOrder = append(c.errOrder, key)
	}
	c.errors[key] = err
}

func (c *BaseContext) GetErrors() map[string]error {
	return c.errors
}

func (c *BaseContext) HasErrors() bool {
	return len(c.errors) > 0
}

func (c *BaseContext) Err() error {
	if len(c.errOrder) == 0 {
		return nil
	}
	errs := make([]error, 0, len(c.errOrder))
	for _, key := range c.errOrder {
		errs = append(errs, c.errors[key])
	}
	return errors.Join(errs...)
}
