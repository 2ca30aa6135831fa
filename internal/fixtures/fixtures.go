// Package fixtures registers a small service library used by tests, the
// feature suite and the cfgproc examples.
package fixtures

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/GoCodeAlone/configprocessor/catalog"
	"github.com/GoCodeAlone/configprocessor/config"
	"github.com/GoCodeAlone/configprocessor/resolve"
)

// LibraryName is the name the fixture library is registered under.
const LibraryName = "github.com/GoCodeAlone/configprocessor/internal/fixtures"

// Callback is a delegate configured through a static member accessor.
type Callback func(string) string

// TimeHolder carries a duration property.
type TimeHolder struct {
	Time time.Duration
}

// ComplexObject is configured by property binding.
type ComplexObject struct {
	Name  string
	Value *TimeHolder
}

// ActionBuilder collects items from a nested configuration.
type ActionBuilder struct {
	Items []string
}

// Add appends item.
func (b *ActionBuilder) Add(item string) { b.Items = append(b.Items, item) }

// ErrRejected is returned by ActionBuilder.Reject.
var ErrRejected = errors.New("item rejected")

// Reject fails with item.
func (b *ActionBuilder) Reject(item string) error { return fmt.Errorf("%w: %s", ErrRejected, item) }

// Services is the configuration target.
type Services struct {
	Level     int
	Strings   []string
	Ints      []int
	Callbacks []Callback
	Complex   []ComplexObject
	Actions   []string
	Conn      string
	Tags      map[string]string
	Paths     []string
	Pending   []func(*ActionBuilder)
}

// AddSimpleString records value.
func (s *Services) AddSimpleString(value string) { s.Strings = append(s.Strings, value) }

// TestDelegate is the static member used as a Callback.
func TestDelegate(s string) string { return "delegate:" + s }

// AddDummyDelegate records a callback.
func AddDummyDelegate(s *Services, dummyDelegate Callback) {
	s.Callbacks = append(s.Callbacks, dummyDelegate)
}

// AddComplexObject records a configured object.
func AddComplexObject(s *Services, complexObject ComplexObject) {
	s.Complex = append(s.Complex, complexObject)
}

// AddDummyArray records every value.
func AddDummyArray(s *Services, values []int) { s.Ints = append(s.Ints, values...) }

// AddConfigurationAction runs configure on a fresh builder and records its
// items.
func AddConfigurationAction(s *Services, configure func(*ActionBuilder)) {
	b := &ActionBuilder{}
	configure(b)
	s.Actions = append(s.Actions, b.Items...)
}

// AddDbConnection records a connection string.
func AddDbConnection(s *Services, connectionString string) { s.Conn = connectionString }

// AddDeferredAction keeps configure to be run later by the caller.
func AddDeferredAction(s *Services, configure func(*ActionBuilder)) {
	s.Pending = append(s.Pending, configure)
}

// ErrEmptyPipeline is returned by AddPipeline when nothing was configured.
var ErrEmptyPipeline = errors.New("pipeline has no items")

// AddPipeline is AddConfigurationAction failing on an empty builder.
func AddPipeline(s *Services, configure func(*ActionBuilder)) error {
	b := &ActionBuilder{}
	configure(b)
	if len(b.Items) == 0 {
		return ErrEmptyPipeline
	}
	s.Actions = append(s.Actions, b.Items...)
	return nil
}

// AddContext records the section path and the root Marker value.
func AddContext(s *Services, root *config.Root, section config.Section) {
	v, _ := root.Section("Marker").Value()
	s.Paths = append(s.Paths, section.Path()+"="+v)
}

// AddManual calls SimpleString through the processor handle.
func AddManual(s *Services, processor resolve.Processor) error {
	return processor.Invoke(s, "SimpleString", "manual:"+processor.Section().Key())
}

// Append records the name of T and value.
func Append[T any](b *ActionBuilder, value string) {
	b.Items = append(b.Items, catalog.TypeString(reflect.TypeFor[T]())+"="+strings.TrimSpace(value))
}

// Labels replaces the tags.
func Labels(s *Services, labels map[string]string) { s.Tags = labels }

// Library builds the fixture library without registering it.
func Library() *catalog.Library {
	lib := catalog.NewLibrary(LibraryName)
	lib.Type(Services{}).Method("AddSimpleString", "value")
	lib.Type(ComplexObject{})
	lib.Type(ActionBuilder{}).Method("Add", "item").Method("Reject", "item")
	lib.Holder("DelegateMembers").Func("TestDelegate", TestDelegate).Params("s")

	ext := lib.Holder("ServiceExtensions")
	ext.Func("AddDummyDelegate", AddDummyDelegate).Params("services", "dummyDelegate")
	ext.Func("AddComplexObject", AddComplexObject).Params("services", "complexObject")
	ext.Func("AddDummyArray", AddDummyArray).Params("services", "values")
	ext.Func("AddConfigurationAction", AddConfigurationAction).Params("services", "configure")
	ext.Func("AddPipeline", AddPipeline).Params("services", "configure")
	ext.Func("AddDeferredAction", AddDeferredAction).Params("services", "configure")
	ext.Func("AddDbConnection", AddDbConnection).Params("services", "connectionString")
	ext.Func("AddContext", AddContext).Params("services", "root", "section")
	ext.Func("AddManual", AddManual).Params("services", "processor")
	ext.Func("Labels", Labels).Params("services", "labels")

	lib.Holder("ActionExtensions").Generic("Append", 1, func(types []reflect.Type) (any, error) {
		name := catalog.TypeString(types[0])
		return func(b *ActionBuilder, value string) {
			b.Items = append(b.Items, name+"="+strings.TrimSpace(value))
		}, nil
	}).Params("builder", "value")
	return lib
}

func init() {
	catalog.MustRegister(Library())
}
