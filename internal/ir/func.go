package ir

// Function owns every Node allocated while building one function's graph
//: Go's garbage collector frees them together once the
// Function value becomes unreachable, which is the GC-language reading of
// "a block allocator … freed together when the function is dropped."
type Function struct {
	Name       string
	ReturnType DataType
	ParamTypes []DataType

	Entry *Node
	Exit  *Node

	nodes  []*Node
	nextID int
}

// NewFunction allocates a function's Entry node (a tuple source whose
// first projection is the incoming parameter list) and Exit node.
func NewFunction(name string, ret DataType, params []DataType) *Function {
	f := &Function{Name: name, ReturnType: ret, ParamTypes: params}
	f.Entry = f.alloc(KindEntry, TypeTuple, nil)
	f.Entry.Pinned = true
	f.Exit = f.alloc(KindExit, TypeVoid, nil)
	f.Exit.Pinned = true
	f.Exit.Inputs = append(f.Exit.Inputs, f.Entry)
	f.addUser(f.Entry, f.Exit, 0)
	return f
}

func (f *Function) alloc(kind Kind, dt DataType, payload any) *Node {
	n := &Node{ID: f.nextID, Kind: kind, Type: dt, Payload: payload}
	f.nextID++
	f.nodes = append(f.nodes, n)
	return n
}

// addUser records that user consumes def's value at input slot slot.
func (f *Function) addUser(def, user *Node, slot int) {
	def.Users = &User{User: user, Slot: slot, Next: def.Users}
}

// removeUser drops the first User record on def's list pointing at
// (user, slot); used when rewriting inputs.
func (f *Function) removeUser(def, user *Node, slot int) {
	var prev *User
	for u := def.Users; u != nil; u = u.Next {
		if u.User == user && u.Slot == slot {
			if prev == nil {
				def.Users = u.Next
			} else {
				prev.Next = u.Next
			}
			return
		}
		prev = u
	}
}

// Nodes returns every node allocated in this function's arena, in
// allocation order.
func (f *Function) Nodes() []*Node { return f.nodes }

// ReplaceAllUses rewrites every user of old to instead reference repl.
// old's use list becomes empty and repl's gains every rewritten entry.
// This is the only way a definition may be replaced; nodes are never
// edited in place by consumers.
func (f *Function) ReplaceAllUses(old, repl *Node) {
	for u := old.Users; u != nil; {
		next := u.Next
		u.User.Inputs[u.Slot] = repl
		u.Next = repl.Users
		repl.Users = u
		u = next
	}
	old.Users = nil
}
