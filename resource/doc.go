// Package resource keeps live Roc values behind integer handles.
//
// A Table owns the values inserted into it. Remove releases the value's
// foreign payload; Take hands ownership back to the caller, for example
// before the value is transferred into a guest call.
//
//	table := resource.NewTable()
//	h, err := table.Insert(str)
//	s, ok := resource.GetTyped[*roc.Str](table, h)
//	err = table.Remove(h)
//
// Footprint sums the foreign bytes held by live values, which lets a host
// account for guest memory pressure. Clear and Close release everything
// and join the individual release errors.
//
// Observers see every insert, release and take:
//
//	type audit struct{}
//
//	func (audit) OnResourceEvent(e resource.Event) {
//	    log.Printf("%s %s #%d", e.Type, e.TypeName, e.Handle)
//	}
//
//	table.Subscribe(audit{})
package resource
